package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/starrybamboo/chatsync/internal/transition"
)

// FakeResource is a scripted transition resource.
//
// Start blocks until Release is called when the resource was created with
// NewBlockingResource, which models a stream that is still buffering.
//
// Thread-safety: safe for concurrent use.
type FakeResource struct {
	ID string

	mu       sync.Mutex
	active   bool
	level    float64
	starts   int
	stops    int
	levels   []float64
	startErr error
	gate     chan struct{}
	started  chan struct{}
}

// NewFakeResource creates a resource whose Start returns immediately.
func NewFakeResource(id string) *FakeResource {
	return &FakeResource{ID: id}
}

// NewBlockingResource creates a resource whose Start waits for Release.
func NewBlockingResource(id string) *FakeResource {
	return &FakeResource{
		ID:      id,
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
}

// FailStart makes every later Start return err.
func (r *FakeResource) FailStart(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

// Release unblocks a pending Start.
func (r *FakeResource) Release() {
	close(r.gate)
}

// WaitStarted blocks until Start has been entered.
func (r *FakeResource) WaitStarted() {
	<-r.started
}

// Start implements transition.Resource.
func (r *FakeResource) Start(ctx context.Context) error {
	r.mu.Lock()
	r.starts++
	err := r.startErr
	gate, started := r.gate, r.started
	r.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.active = true
	r.mu.Unlock()
	return nil
}

// Stop implements transition.Resource.
func (r *FakeResource) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.active = false
}

// IsActive implements transition.Resource.
func (r *FakeResource) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Level implements transition.Resource.
func (r *FakeResource) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// SetLevel implements transition.Resource.
func (r *FakeResource) SetLevel(level float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.level = level
	r.levels = append(r.levels, level)
}

// Starts returns the number of Start calls.
func (r *FakeResource) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Stops returns the number of Stop calls.
func (r *FakeResource) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// Levels returns every level set so far, in order.
func (r *FakeResource) Levels() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.levels...)
}

// Set maps IDs to fake resources and implements transition.Resolver.
type Set map[string]*FakeResource

// NewSet creates a Set with a non-blocking resource per ID.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = NewFakeResource(id)
	}
	return s
}

// Resolve implements transition.Resolver.
func (s Set) Resolve(id string) (transition.Resource, error) {
	r, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", id)
	}
	return r, nil
}
