// Package metrics holds the Prometheus collectors for the sync core.
//
// Collectors live on a Metrics value rather than in package globals so that
// several engines (one per open document, say) and tests can each own a
// registry. Every method is nil-safe: components accept a nil *Metrics and
// simply skip recording.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters exported by the replica engine and the
// transition coordinator.
type Metrics struct {
	Pulls       *prometheus.CounterVec
	Pushes      *prometheus.CounterVec
	Flushes     *prometheus.CounterVec
	Enqueued    prometheus.Counter
	Transitions *prometheus.CounterVec
	Stale       prometheus.Counter
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		Pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_pulls_total",
			Help: "Replica pulls by result status",
		}, []string{"status"}),
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_pushes_total",
			Help: "Replica pushes by result status",
		}, []string{"status"}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_flushes_total",
			Help: "Offline queue flush attempts on pull",
		}, []string{"result"}),
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatsync_enqueued_updates_total",
			Help: "Incremental updates appended to the offline queue",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_transitions_total",
			Help: "Transition requests by kind and outcome",
		}, []string{"kind", "outcome"}),
		Stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatsync_transition_stale_total",
			Help: "Transition steps skipped because a newer generation owns the channel",
		}),
	}
}

// Register registers every collector on reg (or the default registerer if
// nil). Collectors that are already registered are not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// WriteFile writes m to path in the Prometheus text format, the way
// node_exporter's textfile collector expects it. Short-lived processes use it
// in place of a scrape endpoint.
func (m *Metrics) WriteFile(path string) error {
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, reg)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Pulls, m.Pushes, m.Flushes, m.Enqueued, m.Transitions, m.Stale}
}

// ObservePull counts a pull outcome.
func (m *Metrics) ObservePull(status string) {
	if m == nil {
		return
	}
	m.Pulls.WithLabelValues(status).Inc()
}

// ObservePush counts a push outcome.
func (m *Metrics) ObservePush(status string) {
	if m == nil {
		return
	}
	m.Pushes.WithLabelValues(status).Inc()
}

// ObserveFlush counts a flush attempt ("ok" or "failed").
func (m *Metrics) ObserveFlush(result string) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(result).Inc()
}

// ObserveEnqueued counts one queued update.
func (m *Metrics) ObserveEnqueued() {
	if m == nil {
		return
	}
	m.Enqueued.Inc()
}

// ObserveTransition counts a finished transition request.
func (m *Metrics) ObserveTransition(kind, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(kind, outcome).Inc()
}

// ObserveStale counts a stale-generation skip.
func (m *Metrics) ObserveStale() {
	if m == nil {
		return
	}
	m.Stale.Inc()
}
