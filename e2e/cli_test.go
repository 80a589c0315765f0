package e2e_test

import (
	"encoding/json"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath  string
	serverURL   string
	sessionFile string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "nhctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/nhctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath:  binaryPath,
		serverURL:   serverURL,
		sessionFile: filepath.Join(t.TempDir(), "session"),
	}
}

func (r *cliRunner) command(args ...string) *exec.Cmd {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--session-file", r.sessionFile,
		"--output", "json",
	}, args...)
	return exec.Command(r.binaryPath, fullArgs...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	output, err := r.command(args...).Output()
	return string(output), err
}

func (r *cliRunner) runWithInput(input string, args ...string) (string, error) {
	cmd := r.command(args...)
	cmd.Stdin = strings.NewReader(input)
	output, err := cmd.Output()
	return string(output), err
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Stats       struct {
		Rooms  int `json:"rooms"`
		Queued int `json:"queued"`
	} `json:"stats"`
}

type roomResponse struct {
	Code    string `json:"code"`
	Started bool   `json:"started"`
	Members []struct {
		ID     string `json:"id"`
		Nick   string `json:"nick"`
		Online bool   `json:"online"`
	} `json:"members"`
}

// jsonLines decodes one JSON object per line
func jsonLines(t *testing.T, output string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Connections)
}

func TestCLI_PlayThenListRooms(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	ts.app.MockRandom.QueueString("K7P2M")

	// play creates a room, readies and disconnects; the room survives
	output, err := cli.runWithInput("ready\n", "play", "--nick", "alice", "--create")
	require.NoError(t, err, "output: %s", output)

	events := jsonLines(t, output)
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, "hello", events[0]["type"])
	sessionID, _ := events[0]["sessionId"].(string)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, "room:created", events[1]["type"])
	assert.Equal(t, "K7P2M", events[1]["code"])
	assert.Equal(t, "room:state", events[2]["type"])

	// the relay releases the session just after echoing the close
	var rooms []roomResponse
	require.Eventually(t, func() bool {
		out, err := cli.run("rooms")
		if err != nil || json.Unmarshal([]byte(out), &rooms) != nil {
			return false
		}
		return len(rooms) == 1 && len(rooms[0].Members) == 1 && !rooms[0].Members[0].Online
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "K7P2M", rooms[0].Code)
	require.Len(t, rooms[0].Members, 1)
	assert.Equal(t, sessionID, rooms[0].Members[0].ID)
	assert.Equal(t, "alice", rooms[0].Members[0].Nick)
	assert.False(t, rooms[0].Members[0].Online)

	// a second run resumes the saved session and gets the room replayed
	output, err = cli.runWithInput("leave\n", "play")
	require.NoError(t, err, "output: %s", output)

	events = jsonLines(t, output)
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, sessionID, events[0]["sessionId"])
	assert.Equal(t, "room:joined", events[1]["type"])
	assert.Equal(t, "room:left", events[2]["type"])

	output, err = cli.run("health")
	require.NoError(t, err, "output: %s", output)
	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, 0, resp.Stats.Rooms)
}
