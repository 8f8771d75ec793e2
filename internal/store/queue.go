package store

import (
	"context"
	"fmt"
)

// Entry is one queued update with its bookkeeping columns.
type Entry struct {
	ID           int64
	DocKey       string
	Payload      []byte
	EnqueuedAtMs int64
}

// Append implements replica.PendingQueue.
func (s *Store) Append(ctx context.Context, docKey string, update []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_updates (doc_key, payload, enqueued_at_ms)
		VALUES (?, ?, ?)
	`, docKey, blob(update), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append %s: %w", docKey, err)
	}
	return nil
}

// List implements replica.PendingQueue.
func (s *Store) List(ctx context.Context, docKey string) ([][]byte, error) {
	entries, err := s.Entries(ctx, docKey)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Payload
	}
	return out, nil
}

// Clear implements replica.PendingQueue. Only the n oldest rows go, so rows
// appended after the caller's List survive.
func (s *Store) Clear(ctx context.Context, docKey string, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_updates
		WHERE id IN (
			SELECT id FROM pending_updates
			WHERE doc_key = ?
			ORDER BY id ASC
			LIMIT ?
		)
	`, docKey, n)
	if err != nil {
		return fmt.Errorf("clear %s: %w", docKey, err)
	}
	return nil
}

// Entries returns the queued rows for docKey, oldest first.
func (s *Store) Entries(ctx context.Context, docKey string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_key, payload, enqueued_at_ms
		FROM pending_updates
		WHERE doc_key = ?
		ORDER BY id ASC
	`, docKey)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", docKey, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.DocKey, &e.Payload, &e.EnqueuedAtMs); err != nil {
			return nil, fmt.Errorf("scan pending update: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending updates: %w", err)
	}
	return entries, nil
}

// PendingDocs returns every document key with queued updates, sorted.
func (s *Store) PendingDocs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT doc_key FROM pending_updates
		ORDER BY doc_key ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("pending docs: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan doc key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate doc keys: %w", err)
	}
	return keys, nil
}
