package transition

import (
	"context"
	"time"
)

// Resource is anything the coordinator can hand a channel to. The
// coordinator only drives it; callers own it.
type Resource interface {
	// Start begins the resource. It may block (e.g. buffering).
	Start(ctx context.Context) error
	// Stop halts and releases the resource. Safe to call when stopped.
	Stop()
	// IsActive reports whether the resource is still running.
	IsActive() bool
	// Level returns the current output level (volume, opacity, ...).
	Level() float64
	// SetLevel sets the output level.
	SetLevel(level float64)
}

// Resolver maps a resource ID to a Resource.
type Resolver interface {
	Resolve(resourceID string) (Resource, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(resourceID string) (Resource, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(resourceID string) (Resource, error) {
	return f(resourceID)
}

// Config tunes the ramps.
type Config struct {
	// FadeOut is the wind-down duration of the outgoing resource.
	FadeOut time.Duration
	// FadeIn is the ramp-up duration of the incoming resource.
	FadeIn time.Duration
	// Frame is the pause between ramp steps.
	Frame time.Duration
	// TargetLevel is the level an activated resource ramps up to.
	TargetLevel float64
}

// DefaultConfig returns a 400ms cross-fade at roughly 60 frames per second.
func DefaultConfig() Config {
	return Config{
		FadeOut:     400 * time.Millisecond,
		FadeIn:      400 * time.Millisecond,
		Frame:       16 * time.Millisecond,
		TargetLevel: 1.0,
	}
}

// steps returns how many frames a ramp of duration d takes.
func (c Config) steps(d time.Duration) int {
	if d <= 0 || c.Frame <= 0 {
		return 1
	}
	n := int((d + c.Frame - 1) / c.Frame)
	if n < 1 {
		n = 1
	}
	return n
}

// Outcome is the result of a transition request.
type Outcome int

const (
	// OutcomeActivated means the requested resource is now active.
	OutcomeActivated Outcome = iota + 1
	// OutcomeDeactivated means the channel now has no active resource.
	OutcomeDeactivated
	// OutcomeUnchanged means the requested resource was already active.
	OutcomeUnchanged
	// OutcomeSuperseded means a newer request took over the channel.
	OutcomeSuperseded
	// OutcomeFailed means the resource failed to start.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeActivated:
		return "activated"
	case OutcomeDeactivated:
		return "deactivated"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
