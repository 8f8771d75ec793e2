package transition

import "sync/atomic"

// Generation is a channel's monotonic request counter.
//
// Every request takes Next() as its token. A token is current while it
// equals Current(). The counter never decreases and is not persisted.
//
// Thread-safety: Generation is safe for concurrent use (atomic operations).
type Generation struct {
	n atomic.Int64
}

// Next increments the generation and returns the new value.
func (g *Generation) Next() int64 {
	return g.n.Add(1)
}

// Current returns the live generation without incrementing.
func (g *Generation) Current() int64 {
	return g.n.Load()
}

// IsCurrent reports whether token still owns the channel.
func (g *Generation) IsCurrent(token int64) bool {
	return g.n.Load() == token
}
