package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/starrybamboo/chatsync/internal/replica"
)

// MemoryStore is an in-process RemoteStore holding encoded envelopes.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Fetch implements replica.RemoteStore.
func (m *MemoryStore) Fetch(ctx context.Context, docKey string) replica.FetchResult {
	if err := ctx.Err(); err != nil {
		return replica.Unavailable(err)
	}
	m.mu.Lock()
	raw, ok := m.data[docKey]
	m.mu.Unlock()
	if !ok {
		return replica.NotFound()
	}
	return DecodeEnvelope(raw)
}

// Persist implements replica.RemoteStore.
func (m *MemoryStore) Persist(ctx context.Context, docKey string, snap replica.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := EncodeEnvelope(snap)
	if err != nil {
		return fmt.Errorf("persist %s: %w", docKey, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.data[docKey]
	if err := checkVersion(docKey, storedVersion(cur), ok, snap.Version); err != nil {
		return err
	}
	m.data[docKey] = raw
	return nil
}

// PutRaw stores raw bytes for docKey, bypassing encoding and version checks.
// Used to simulate corrupt or foreign snapshots.
func (m *MemoryStore) PutRaw(docKey string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[docKey] = append([]byte(nil), raw...)
}

// Keys returns the number of stored documents.
func (m *MemoryStore) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
