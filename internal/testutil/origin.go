package testutil

import (
	"fmt"
	"sync"
)

// SequentialOrigins hands out deterministic replica origins.
//
// Production replicas use crdt.NewOrigin (UUIDv7). Scenario tests need the
// same origin per peer on every run so golden output stays byte-identical.
//
// Thread-safety: safe for concurrent use.
type SequentialOrigins struct {
	mu     sync.Mutex
	prefix string
	n      int
	byName map[string]string
}

// NewSequentialOrigins creates a generator. An empty prefix means "origin".
func NewSequentialOrigins(prefix string) *SequentialOrigins {
	if prefix == "" {
		prefix = "origin"
	}
	return &SequentialOrigins{prefix: prefix, byName: make(map[string]string)}
}

// For returns the origin for a named peer, assigning the next one on first
// use.
func (g *SequentialOrigins) For(name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o, ok := g.byName[name]; ok {
		return o
	}
	g.n++
	o := fmt.Sprintf("%s-%04d", g.prefix, g.n)
	g.byName[name] = o
	return o
}
