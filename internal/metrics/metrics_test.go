package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()

	require.NoError(t, m.Register(reg))
	require.NoError(t, m.Register(reg))
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.ObservePush("persisted")
	m.ObservePush("persisted")
	m.ObserveTransition("activate", "superseded")

	path := filepath.Join(t.TempDir(), "chatsync.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chatsync_pushes_total{status="persisted"} 2`)
	assert.Contains(t, string(data), `chatsync_transitions_total{kind="activate",outcome="superseded"} 1`)
	assert.Contains(t, string(data), "chatsync_enqueued_updates_total 0")
}

func TestObserve_Counts(t *testing.T) {
	m := New()
	m.ObservePull("updated")
	m.ObservePull("updated")
	m.ObservePush("queued")
	m.ObserveFlush("failed")
	m.ObserveEnqueued()
	m.ObserveTransition("activate", "superseded")
	m.ObserveStale()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Pulls.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Pushes.WithLabelValues("queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Enqueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("activate", "superseded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stale))
}

func TestObserve_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePull("x")
		m.ObservePush("x")
		m.ObserveFlush("x")
		m.ObserveEnqueued()
		m.ObserveTransition("x", "y")
		m.ObserveStale()
	})
}
