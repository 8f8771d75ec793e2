package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starrybamboo/chatsync/internal/replica"
)

// Fetch implements replica.RemoteStore over the snapshots table.
func (s *Store) Fetch(ctx context.Context, docKey string) replica.FetchResult {
	var snap replica.Snapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT version, payload, updated_at_ms
		FROM snapshots
		WHERE doc_key = ?
	`, docKey).Scan(&snap.Version, &snap.Update, &snap.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return replica.NotFound()
	}
	if err != nil {
		return replica.Unavailable(fmt.Errorf("fetch %s: %w", docKey, err))
	}
	return replica.Found(snap)
}

// Persist implements replica.RemoteStore. The snapshot's version must be
// exactly one past the stored version.
func (s *Store) Persist(ctx context.Context, docKey string, snap replica.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist %s: begin: %w", docKey, err)
	}
	defer tx.Rollback()

	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM snapshots WHERE doc_key = ?`, docKey).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("persist %s: read version: %w", docKey, err)
	}
	if snap.Version != stored+1 {
		return fmt.Errorf("%w: %s: stored %d, got %d", replica.ErrVersionConflict, docKey, stored, snap.Version)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (doc_key, version, payload, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET
			version = excluded.version,
			payload = excluded.payload,
			updated_at_ms = excluded.updated_at_ms
	`, docKey, snap.Version, blob(snap.Update), snap.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("persist %s: write: %w", docKey, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist %s: commit: %w", docKey, err)
	}
	return nil
}

// Docs returns every document key that has a snapshot, sorted.
func (s *Store) Docs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_key FROM snapshots
		ORDER BY doc_key ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
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
		return nil, fmt.Errorf("iterate docs: %w", err)
	}
	return keys, nil
}

// blob keeps empty payloads from binding as NULL.
func blob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
