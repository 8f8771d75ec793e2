package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/starrybamboo/chatsync/internal/crdt"
	"github.com/starrybamboo/chatsync/internal/remote"
	"github.com/starrybamboo/chatsync/internal/replica"
	"github.com/starrybamboo/chatsync/internal/testutil"
)

// peer is one replica under test.
type peer struct {
	name   string
	doc    *crdt.Doc
	link   *testutil.FlakyRemote
	engine *replica.Engine
}

// Harness is the scenario execution engine.
// It runs scenarios with deterministic origins and a manual clock.
type Harness struct {
	docKey string
	remote *remote.MemoryStore
	clock  *testutil.ManualClock
	peers  map[string]*peer
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory remote for isolation.
//
// Execution flow:
// 1. Create the remote and one peer per declared name
// 2. Execute steps, recording one trace event each
// 3. Evaluate assertions
// 4. Record the final remote state
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		event, err := h.executeStep(ctx, i+1, step, result)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		result.Trace = append(result.Trace, event)
		h.clock.Advance(time.Second)
	}

	for i, a := range scenario.Assertions {
		if err := h.evaluate(ctx, a); err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}

	state, version, err := h.remoteState(ctx)
	if err != nil {
		return nil, err
	}
	result.Remote = state
	result.Version = version
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	h := &Harness{
		docKey: scenario.Doc,
		remote: remote.NewMemoryStore(),
		clock:  testutil.NewManualClock(time.Time{}),
		peers:  make(map[string]*peer, len(scenario.Peers)),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	origins := testutil.NewSequentialOrigins("")
	for _, name := range scenario.Peers {
		link := testutil.NewFlakyRemote(h.remote)
		e, err := replica.New(link, crdt.Algebra{},
			replica.WithClock(h.clock.Now),
			replica.WithLogger(h.logger.With("peer", name)),
		)
		if err != nil {
			return nil, fmt.Errorf("peer %s: %w", name, err)
		}
		h.peers[name] = &peer{
			name:   name,
			doc:    crdt.NewDoc(origins.For(name)),
			link:   link,
			engine: e,
		}
	}
	return h, nil
}

func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) (TraceEvent, error) {
	p := h.peers[step.Peer]
	event := TraceEvent{Step: n, Peer: p.name, Action: step.Action()}

	switch event.Action {
	case ActionPush:
		update, err := h.buildUpdate(p, step.Push)
		if err != nil {
			return event, err
		}
		res := p.engine.Push(ctx, h.docKey, update)
		event.Status = res.Status.String()
		event.Version = res.Version
		if step.Push.Expect != "" && step.Push.Expect != event.Status {
			result.AddError(fmt.Sprintf("step %d: push status %s, expected %s (err: %v)", n, event.Status, step.Push.Expect, res.Err))
		}

	case ActionPull:
		sv, err := p.doc.StateVector()
		if err != nil {
			return event, err
		}
		res := p.engine.Pull(ctx, h.docKey, sv)
		event.Status = res.Status.String()
		event.Version = res.Version
		event.Flushed = res.Flushed
		if res.Status == replica.PullUpdated {
			if err := p.doc.Apply(res.Update); err != nil {
				return event, fmt.Errorf("apply pulled diff: %w", err)
			}
		}
		if step.Pull.Expect != "" && step.Pull.Expect != event.Status {
			result.AddError(fmt.Sprintf("step %d: pull status %s, expected %s (err: %v)", n, event.Status, step.Pull.Expect, res.Err))
		}

	case ActionRemoteDown:
		p.link.SetDown(true)
	case ActionRemoteUp:
		p.link.SetDown(false)
	case ActionFailPersists:
		p.link.FailNextPersists(step.FailPersists)
	}

	queued, err := p.engine.Pending(ctx, h.docKey)
	if err != nil {
		return event, err
	}
	event.Queued = queued
	return event, nil
}

// buildUpdate applies the step's writes to the peer's Doc and merges the
// resulting incremental updates into one.
func (h *Harness) buildUpdate(p *peer, step *PushStep) ([]byte, error) {
	keys := make([]string, 0, len(step.Set))
	for k := range step.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var updates [][]byte
	for _, k := range keys {
		u, err := p.doc.Set(k, step.Set[k])
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	for _, k := range step.Delete {
		u, err := p.doc.Delete(k)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return crdt.Merge(updates...)
}

// remoteState reads the remote directly, bypassing every peer's link.
func (h *Harness) remoteState(ctx context.Context) (map[string]string, int64, error) {
	res := h.remote.Fetch(ctx, h.docKey)
	if res.Status != replica.FetchFound {
		return map[string]string{}, 0, nil
	}
	state, err := crdt.Materialize(res.Snapshot.Update)
	if err != nil {
		return nil, 0, fmt.Errorf("remote state: %w", err)
	}
	return state, res.Snapshot.Version, nil
}
