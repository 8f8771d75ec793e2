package replica

import (
	"context"
	"sync"
)

// MemoryQueue is a process-lifetime PendingQueue.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryQueue struct {
	mu      sync.Mutex
	updates map[string][][]byte
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{updates: make(map[string][][]byte)}
}

// Append implements PendingQueue.
func (q *MemoryQueue) Append(_ context.Context, docKey string, update []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updates[docKey] = append(q.updates[docKey], append([]byte(nil), update...))
	return nil
}

// List implements PendingQueue.
func (q *MemoryQueue) List(_ context.Context, docKey string) ([][]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queued := q.updates[docKey]
	out := make([][]byte, len(queued))
	copy(out, queued)
	return out, nil
}

// Clear implements PendingQueue.
func (q *MemoryQueue) Clear(_ context.Context, docKey string, n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	queued := q.updates[docKey]
	if n >= len(queued) {
		delete(q.updates, docKey)
		return nil
	}
	if n > 0 {
		q.updates[docKey] = append([][]byte(nil), queued[n:]...)
	}
	return nil
}
