package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/numberhunt/internal/factory"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    map[string]any
		wantErr bool
	}{
		{line: "", want: nil},
		{line: "   ", want: nil},
		{line: "ready", want: map[string]any{"type": "room:ready", "ready": true}},
		{line: "unready", want: map[string]any{"type": "room:ready", "ready": false}},
		{line: "START", want: map[string]any{"type": "room:start"}},
		{line: "found 7", want: map[string]any{"type": "game:progress", "found": 7}},
		{line: "found", wantErr: true},
		{line: "found seven", wantErr: true},
		{line: "found 0", wantErr: true},
		{line: "create", want: map[string]any{"type": "room:create"}},
		{line: "create Big Al", want: map[string]any{"type": "room:create", "nick": "Big Al"}},
		{line: "join K7P2M", want: map[string]any{"type": "room:join", "code": "K7P2M"}},
		{line: "join K7P2M bob", want: map[string]any{"type": "room:join", "code": "K7P2M", "nick": "bob"}},
		{line: "join", wantErr: true},
		{line: "queue", want: map[string]any{"type": "queue:join"}},
		{line: "unqueue", want: map[string]any{"type": "queue:leave"}},
		{line: "leave", want: map[string]any{"type": "room:leave"}},
		{line: "dance", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandQuit(t *testing.T) {
	_, err := parseCommand("quit")
	assert.ErrorIs(t, err, errQuit)
	_, err = parseCommand("exit")
	assert.ErrorIs(t, err, errQuit)
}

func TestInitialMessages(t *testing.T) {
	opts := playOptions{SessionID: "abc", Nick: "alice", Join: "K7P2M"}
	msgs := opts.initialMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]any{"type": "hello", "sessionId": "abc", "nick": "alice"}, msgs[0])
	assert.Equal(t, map[string]any{"type": "room:join", "code": "K7P2M"}, msgs[1])

	msgs = playOptions{}.initialMessages()
	assert.Equal(t, []map[string]any{{"type": "hello"}}, msgs)
}

// endlessInput never runs out of blank lines
type endlessInput struct{}

func (endlessInput) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = '\n'
	}
	return len(p), nil
}

func TestScanLinesStopsWhenDone(t *testing.T) {
	done := make(chan struct{})
	lines := scanLines(endlessInput{}, done)
	assert.Equal(t, "", <-lines)

	close(done)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-lines:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScanLinesClosesAtEOF(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	var got []string
	for line := range scanLines(strings.NewReader("ready\nstart\n"), done) {
		got = append(got, line)
	}
	assert.Equal(t, []string{"ready", "start"}, got)
}

func TestWebsocketURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8080":      "ws://localhost:8080/",
		"https://relay.example.com/": "wss://relay.example.com/",
		"ws://127.0.0.1:9000/ws":     "ws://127.0.0.1:9000/ws",
	}
	for in, want := range tests {
		got, err := NewClient(in).WebsocketURL()
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := NewClient("ftp://example.com").WebsocketURL()
	assert.Error(t, err)
}

func TestSessionFileRoundTrip(t *testing.T) {
	c := &Config{SessionFile: filepath.Join(t.TempDir(), "nested", "session")}
	require.NoError(t, c.SaveSession("abc", "rk_1"))

	// same session with no new key keeps the old one
	require.NoError(t, c.SaveSession("abc", ""))

	loaded := &Config{SessionFile: c.SessionFile}
	require.NoError(t, loaded.LoadSession())
	assert.Equal(t, "abc", loaded.SessionID)
	assert.Equal(t, "rk_1", loaded.ResumeKey)

	// an explicit session is not overwritten
	explicit := &Config{SessionFile: c.SessionFile, SessionID: "mine"}
	require.NoError(t, explicit.LoadSession())
	assert.Equal(t, "mine", explicit.SessionID)

	missing := &Config{SessionFile: filepath.Join(t.TempDir(), "none")}
	assert.NoError(t, missing.LoadSession())
}

func TestRunPlayAgainstServer(t *testing.T) {
	app := factory.NewTestApp()
	app.MockRandom.QueueString("ROOM1")
	srv := httptest.NewServer(app.Handler)
	defer srv.Close()

	wsURL, err := NewClient(srv.URL).WebsocketURL()
	require.NoError(t, err)

	var helloSession string
	opts := playOptions{
		URL:       wsURL,
		SessionID: "alice-token",
		Nick:      "alice",
		Create:    true,
		OnHello:   func(sessionID, _ string) { helloSession = sessionID },
	}

	var buf bytes.Buffer
	in := strings.NewReader("ready\nbogus\nleave\n")
	err = runPlay(context.Background(), opts, in, NewOutput("text", &buf))
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, "alice-token", helloSession)
	assert.Contains(t, out, "Connected as alice-token")
	assert.Contains(t, out, "room:created: room ROOM1, host alice-token, members: alice")
	assert.Contains(t, out, "members: alice*")
	assert.Contains(t, out, "Left room")
	assert.Contains(t, out, "Disconnected (1000")
}

func TestRunPlayJSONOutput(t *testing.T) {
	app := factory.NewTestApp()
	srv := httptest.NewServer(app.Handler)
	defer srv.Close()

	wsURL, err := NewClient(srv.URL).WebsocketURL()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = runPlay(context.Background(), playOptions{URL: wsURL, SessionID: "bob"}, strings.NewReader("queue\n"), NewOutput("json", &buf))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"type":"hello","sessionId":"bob","resumeKey":`+resumeKeyOf(t, lines[0])+`}`, lines[0])
	assert.JSONEq(t, `{"type":"queue:ok"}`, lines[1])
}

// resumeKeyOf extracts the minted resume key so the hello line can be
// compared exactly
func resumeKeyOf(t *testing.T, line string) string {
	t.Helper()
	ev, err := parseEvent([]byte(line))
	require.NoError(t, err)
	key, ok := ev.Fields["resumeKey"].(string)
	require.True(t, ok)
	return `"` + key + `"`
}
