package cli

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// downURL returns the URL of a server that has already been closed.
func downURL() string {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()
	return url
}

func TestPushThenPull(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "json", env.sqliteRemote())

	out, err := execute(t, NewPushCommand(opts), "room-1", "--set", "topic=dice", "--set", "mode=rp")
	require.NoError(t, err)
	var pushed DocReport
	resp := decodeResponse(t, out, &pushed)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "persisted", pushed.Status)
	assert.Equal(t, int64(1), pushed.Version)
	assert.Equal(t, 0, pushed.Pending)

	out, err = execute(t, NewPullCommand(opts), "room-1")
	require.NoError(t, err)
	var pulled []DocReport
	decodeResponse(t, out, &pulled)
	require.Len(t, pulled, 1)
	assert.Equal(t, "updated", pulled[0].Status)
	assert.Equal(t, int64(1), pulled[0].Version)
	assert.Equal(t, map[string]string{"topic": "dice", "mode": "rp"}, pulled[0].State)
	assert.NotEmpty(t, pulled[0].Digest)
}

func TestPushThenPull_WritesMetricsFile(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "json", env.sqliteRemote())
	opts.MetricsFile = filepath.Join(env.dir, "sync.prom")

	_, err := execute(t, NewPushCommand(opts), "room-1", "--set", "topic=dice")
	require.NoError(t, err)
	data, err := os.ReadFile(opts.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chatsync_pushes_total{status="persisted"} 1`)

	_, err = execute(t, NewPullCommand(opts), "room-1")
	require.NoError(t, err)
	data, err = os.ReadFile(opts.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chatsync_pulls_total{status="updated"} 1`)
	assert.NotContains(t, string(data), "chatsync_pushes_total{", "each run writes only its own counters")
}

func TestPull_RepeatedDocPulledOnce(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "json", env.sqliteRemote())
	opts.MetricsFile = filepath.Join(env.dir, "pull.prom")

	_, err := execute(t, NewPushCommand(opts), "room-1", "--set", "topic=dice")
	require.NoError(t, err)

	out, err := execute(t, NewPullCommand(opts), "room-1", "room-2", "room-1")
	require.NoError(t, err)
	var pulled []DocReport
	decodeResponse(t, out, &pulled)
	require.Len(t, pulled, 2)
	assert.Equal(t, "room-1", pulled[0].Doc)
	assert.Equal(t, "room-2", pulled[1].Doc)

	data, err := os.ReadFile(opts.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chatsync_pulls_total{status="updated"} 1`)
}

func TestUniqueDocs(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, uniqueDocs([]string{"b", "a", "b", "a"}))
	assert.Empty(t, uniqueDocs(nil))
}

func TestPushDeleteAndShow(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "json", env.sqliteRemote())

	_, err := execute(t, NewPushCommand(opts), "room-1", "--set", "topic=dice", "--set", "mode=rp")
	require.NoError(t, err)
	out, err := execute(t, NewPushCommand(opts), "room-1", "--delete", "topic")
	require.NoError(t, err)
	var pushed DocReport
	decodeResponse(t, out, &pushed)
	assert.Equal(t, "persisted", pushed.Status)
	assert.Equal(t, int64(2), pushed.Version)
	assert.Equal(t, map[string]string{"mode": "rp"}, pushed.State)

	out, err = execute(t, NewShowCommand(opts), "room-1")
	require.NoError(t, err)
	var shown SnapshotReport
	decodeResponse(t, out, &shown)
	assert.Equal(t, "found", shown.Status)
	assert.Equal(t, int64(2), shown.Version)
	assert.Equal(t, map[string]string{"mode": "rp"}, shown.State)
	assert.NotEmpty(t, shown.UpdatedAt)
	assert.Len(t, shown.Clock, 2, "two processes, two origins")
}

func TestLaterProcessWinsSameKey(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "json", env.sqliteRemote())

	_, err := execute(t, NewPushCommand(opts), "room-1", "--set", "topic=dice")
	require.NoError(t, err)
	_, err = execute(t, NewPushCommand(opts), "room-1", "--set", "topic=cards")
	require.NoError(t, err)

	out, err := execute(t, NewShowCommand(opts), "room-1")
	require.NoError(t, err)
	var shown SnapshotReport
	decodeResponse(t, out, &shown)
	assert.Equal(t, map[string]string{"topic": "cards"}, shown.State)
}

func TestShowMissingDoc(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "text", env.sqliteRemote())

	out, err := execute(t, NewShowCommand(opts), "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "nope: not_found")
}

func TestPushQueuedWhileDownThenFlush(t *testing.T) {
	env := newTestEnv(t)
	down := env.config(t, "json", httpRemote(downURL()))

	out, err := execute(t, NewPushCommand(down), "room-1", "--set", "topic=dice")
	require.NoError(t, err, "a queued write is not a failure")
	var pushed DocReport
	decodeResponse(t, out, &pushed)
	assert.Equal(t, "queued", pushed.Status)
	assert.Equal(t, 1, pushed.Pending)
	assert.NotEmpty(t, pushed.Error)

	out, err = execute(t, NewQueueCommand(down))
	require.NoError(t, err)
	var queued []QueueReport
	decodeResponse(t, out, &queued)
	require.Len(t, queued, 1)
	assert.Equal(t, "room-1", queued[0].Doc)
	require.Len(t, queued[0].Entries, 1)
	assert.Equal(t, 1, queued[0].Entries[0].Ops)

	// Still down: flush gives up with the queue intact.
	out, err = execute(t, NewFlushCommand(down), "--max-tries", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var stuck []FlushReport
	resp := decodeResponse(t, out, &stuck)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodePending, resp.Error.Code)
	require.Len(t, stuck, 1)
	assert.Equal(t, 1, stuck[0].Pending)
	assert.Equal(t, 1, stuck[0].Attempts)

	// Remote back (same queue): the queue creates the snapshot.
	up := env.config(t, "json", env.sqliteRemote())
	out, err = execute(t, NewFlushCommand(up))
	require.NoError(t, err)
	var flushed []FlushReport
	decodeResponse(t, out, &flushed)
	require.Len(t, flushed, 1)
	assert.Equal(t, 1, flushed[0].Flushed)
	assert.Equal(t, 0, flushed[0].Pending)
	assert.Equal(t, int64(1), flushed[0].Version)

	out, err = execute(t, NewShowCommand(up), "room-1")
	require.NoError(t, err)
	var shown SnapshotReport
	decodeResponse(t, out, &shown)
	assert.Equal(t, map[string]string{"topic": "dice"}, shown.State)
	assert.Equal(t, 0, shown.Pending)
}

func TestPullFlushesQueue(t *testing.T) {
	env := newTestEnv(t)
	up := env.config(t, "json", env.sqliteRemote())
	_, err := execute(t, NewPushCommand(up), "room-1", "--set", "topic=dice")
	require.NoError(t, err)

	down := env.config(t, "json", httpRemote(downURL()))
	_, err = execute(t, NewPushCommand(down), "room-1", "--set", "mode=rp")
	require.NoError(t, err)

	up = env.config(t, "json", env.sqliteRemote())
	out, err := execute(t, NewPullCommand(up), "room-1", "room-2")
	require.NoError(t, err)
	var pulled []DocReport
	decodeResponse(t, out, &pulled)
	require.Len(t, pulled, 2)
	assert.Equal(t, "updated", pulled[0].Status)
	assert.Equal(t, 1, pulled[0].Flushed)
	assert.Equal(t, int64(2), pulled[0].Version)
	assert.Equal(t, map[string]string{"topic": "dice", "mode": "rp"}, pulled[0].State)
	assert.Equal(t, "not_found", pulled[1].Status)
}

func TestPullUnavailableExitsFailure(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "text", httpRemote(downURL()))

	out, err := execute(t, NewPullCommand(opts), "room-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "room-1: unavailable")
}

func TestFlushNothingQueued(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "text", env.sqliteRemote())

	out, err := execute(t, NewFlushCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to flush.")

	out, err = execute(t, NewQueueCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Queue is empty.")
}

func TestPushValidation(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "text", env.sqliteRemote())

	_, err := execute(t, NewPushCommand(opts), "room-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "nothing to push")

	_, err = execute(t, NewPushCommand(opts), "room-1", "--set", "novalue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"novalue" is not key=value`)

	_, err = execute(t, NewPushCommand(opts), "room-1", "--set", "=v")
	require.Error(t, err)
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"a=1", "b=x=y", "a=2", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2", "b": "x=y", "c": ""}, got)
}

func TestBadConfigIsCommandError(t *testing.T) {
	env := newTestEnv(t)
	opts := env.config(t, "text", "remote:\n  kind: carrier-pigeon")

	_, err := execute(t, NewPullCommand(opts), "room-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
