package testutil

import (
	"context"
	"sync"
	"time"
)

// Sleeper is an instant, context-aware replacement for time.Sleep.
//
// Each call yields to other goroutines so concurrent requests interleave
// the way they would at frame boundaries, then returns immediately.
type Sleeper struct {
	clock *ManualClock

	mu     sync.Mutex
	calls  int
	total  time.Duration
	before func()
}

// NewSleeper creates a Sleeper without a backing clock.
func NewSleeper() *Sleeper {
	return &Sleeper{}
}

// OnSleep installs a hook that runs at the start of every Sleep. Tests use
// it to issue a competing request from inside a ramp.
func (s *Sleeper) OnSleep(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.before = hook
}

// Sleep records d, runs the hook, advances the clock and returns ctx.Err().
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls++
	s.total += d
	hook := s.before
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if s.clock != nil {
		s.clock.Advance(d)
	}
	return ctx.Err()
}

// Calls returns how many times Sleep ran.
func (s *Sleeper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Total returns the summed requested duration.
func (s *Sleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
