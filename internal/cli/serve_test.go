package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe to read while the server goroutine
// writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServe_RoundTripAndShutdown(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "text", env.sqliteRemote())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	cmd := NewServeCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--addr", "127.0.0.1:0", "--db", filepath.Join(env.dir, "served.db")})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var base string
	require.Eventually(t, func() bool {
		line := out.String()
		if !strings.HasPrefix(line, "Listening on ") {
			return false
		}
		base = "http://" + strings.TrimSpace(strings.TrimPrefix(line, "Listening on "))
		return true
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	metricsBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(metricsBody), "go_goroutines")

	// A client configured for the HTTP remote writes through the service.
	client := env.config(t, "json", httpRemote(base))
	pushOut, err := execute(t, NewPushCommand(client), "room-1", "--set", "topic=dice")
	require.NoError(t, err)
	var pushed DocReport
	decodeResponse(t, pushOut, &pushed)
	assert.Equal(t, "persisted", pushed.Status)

	showOut, err := execute(t, NewShowCommand(client), "room-1")
	require.NoError(t, err)
	var shown SnapshotReport
	decodeResponse(t, showOut, &shown)
	assert.Equal(t, map[string]string{"topic": "dice"}, shown.State)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestServe_ListenError(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "text", env.sqliteRemote())

	_, err := execute(t, NewServeCommand(opts), "--addr", "256.0.0.1:bad", "--db", filepath.Join(env.dir, "s.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to listen")
}
