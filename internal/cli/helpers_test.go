package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// testEnv is a config file plus the state directory it points at.
type testEnv struct {
	dir       string
	queuePath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{dir: dir, queuePath: filepath.Join(dir, "state", "queue.db")}
}

// config writes a config file for the given remote section and returns
// root options that load it.
func (e *testEnv) config(t *testing.T, format, remote string) *RootOptions {
	t.Helper()
	content := fmt.Sprintf(`%s
queue:
  path: %s
retry:
  initial_interval: 1ms
  max_interval: 2ms
  max_tries: 2
transition:
  fade_out: 4ms
  fade_in: 4ms
  frame: 1ms
  target_level: 1
`, remote, e.queuePath)
	path := filepath.Join(e.dir, "chatsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return &RootOptions{Format: format, ConfigPath: path}
}

// sqliteRemote is a remote section backed by a SQLite file in the env.
func (e *testEnv) sqliteRemote() string {
	return fmt.Sprintf("remote:\n  kind: sqlite\n  url: %s", filepath.Join(e.dir, "remote.db"))
}

// httpRemote is a remote section pointing at url.
func httpRemote(url string) string {
	return fmt.Sprintf("remote:\n  kind: http\n  url: %s\n  timeout: 2s", url)
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeResponse parses a JSON envelope and decodes its data into v.
func decodeResponse(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if v != nil {
		require.NoError(t, json.Unmarshal(raw.Data, v), out)
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}
