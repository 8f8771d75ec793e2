package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/starrybamboo/chatsync/internal/replica"
)

// ErrInjected is the error FlakyRemote reports for injected failures.
var ErrInjected = errors.New("testutil: injected remote failure")

// FlakyRemote wraps a RemoteStore and injects outages.
//
// SetDown makes both Fetch and Persist fail. SetPersistDown fails only
// Persist, which models a remote that is readable but rejects writes.
//
// Thread-safety: safe for concurrent use.
type FlakyRemote struct {
	inner replica.RemoteStore

	mu              sync.Mutex
	down            bool
	persistDown     bool
	failNextPersist int
	fetches         int
	persists        int
	persisted       int
}

// NewFlakyRemote wraps inner.
func NewFlakyRemote(inner replica.RemoteStore) *FlakyRemote {
	return &FlakyRemote{inner: inner}
}

// SetDown toggles a full outage.
func (r *FlakyRemote) SetDown(down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = down
}

// SetPersistDown toggles a write-only outage.
func (r *FlakyRemote) SetPersistDown(down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistDown = down
}

// FailNextPersists makes the next n Persist calls fail.
func (r *FlakyRemote) FailNextPersists(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNextPersist = n
}

// Fetch implements replica.RemoteStore.
func (r *FlakyRemote) Fetch(ctx context.Context, docKey string) replica.FetchResult {
	r.mu.Lock()
	r.fetches++
	down := r.down
	r.mu.Unlock()
	if down {
		return replica.Unavailable(ErrInjected)
	}
	return r.inner.Fetch(ctx, docKey)
}

// Persist implements replica.RemoteStore.
func (r *FlakyRemote) Persist(ctx context.Context, docKey string, snap replica.Snapshot) error {
	r.mu.Lock()
	r.persists++
	fail := r.down || r.persistDown || r.failNextPersist > 0
	if r.failNextPersist > 0 {
		r.failNextPersist--
	}
	r.mu.Unlock()
	if fail {
		return ErrInjected
	}
	if err := r.inner.Persist(ctx, docKey, snap); err != nil {
		return err
	}
	r.mu.Lock()
	r.persisted++
	r.mu.Unlock()
	return nil
}

// Fetches returns the number of Fetch calls, including failed ones.
func (r *FlakyRemote) Fetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

// Persists returns the number of Persist calls, including failed ones.
func (r *FlakyRemote) Persists() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persists
}

// Persisted returns the number of Persist calls that reached the store.
func (r *FlakyRemote) Persisted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persisted
}

// FailingQueue is a PendingQueue whose Append always fails.
type FailingQueue struct {
	replica.MemoryQueue
}

// Append implements replica.PendingQueue.
func (q *FailingQueue) Append(context.Context, string, []byte) error {
	return ErrInjected
}
