package e2e_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/numberhunt/internal/api"
	"github.com/mcoot/numberhunt/internal/factory"
	"github.com/mcoot/numberhunt/internal/transport"
)

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	app      *factory.TestApp
	addr     string
	shutdown func()
}

// startTestServer runs the relay on a free port with mocked clock and
// randomness. Inbound rate limiting is off so scenarios can claim markers
// as fast as the relay answers.
func startTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestAppWithConfig(factory.Config{
		TransportConfig: transport.Config{
			HeartbeatInterval: 30 * time.Second,
			RateLimit:         0,
		},
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := api.DefaultServerConfig()
	cfg.ShutdownTimeout = 5 * time.Second
	server := app.NewServer(cfg)

	go func() {
		if err := server.Serve(listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := "http://" + listener.Addr().String()
	waitForServer(t, serverURL+"/health")

	return &testServer{
		app:  app,
		addr: serverURL,
		shutdown: func() {
			_ = server.Shutdown(context.Background())
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

func (ts *testServer) getJSON(t *testing.T, path string, result any) {
	t.Helper()
	resp, err := http.Get(ts.addr + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(result))
}

// wsClient is one player connection
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (ts *testServer) dial(t *testing.T) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+ts.addr[len("http"):]+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msg map[string]any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

// next reads the next message
func (c *wsClient) next() map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg map[string]any
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

// expect reads the next message and requires its type
func (c *wsClient) expect(typ string) map[string]any {
	c.t.Helper()
	msg := c.next()
	require.Equal(c.t, typ, msg["type"], "unexpected message %v", msg)
	return msg
}

// hello says hello and returns the established session id
func (c *wsClient) hello(sessionID, nick string) string {
	c.t.Helper()
	msg := map[string]any{"type": "hello", "nick": nick}
	if sessionID != "" {
		msg["sessionId"] = sessionID
	}
	c.send(msg)
	reply := c.expect("hello")
	id, _ := reply["sessionId"].(string)
	require.NotEmpty(c.t, id)
	return id
}

// closeCode reads until the connection closes and returns the close code
func (c *wsClient) closeCode() int {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(c.t, err, &closeErr)
		return closeErr.Code
	}
}

func members(msg map[string]any) []map[string]any {
	raw, _ := msg["members"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		fields, _ := m.(map[string]any)
		out = append(out, fields)
	}
	return out
}
