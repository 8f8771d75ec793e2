package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starrybamboo/chatsync/internal/replica"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS doc_snapshots (
	doc_key       TEXT PRIMARY KEY,
	version       BIGINT NOT NULL,
	full_update   BYTEA NOT NULL,
	updated_at_ms BIGINT NOT NULL
)`

// PostgresStore keeps snapshots in the doc_snapshots table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to url and ensures the table exists.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Fetch implements replica.RemoteStore.
func (s *PostgresStore) Fetch(ctx context.Context, docKey string) replica.FetchResult {
	var snap replica.Snapshot
	err := s.pool.QueryRow(ctx,
		`SELECT version, full_update, updated_at_ms FROM doc_snapshots WHERE doc_key = $1`,
		docKey,
	).Scan(&snap.Version, &snap.Update, &snap.UpdatedAtMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return replica.NotFound()
	}
	if err != nil {
		return replica.Unavailable(fmt.Errorf("fetch %s: %w", docKey, err))
	}
	return replica.Found(snap)
}

// Persist implements replica.RemoteStore. Version 1 inserts; later versions
// update only the row still at version-1.
func (s *PostgresStore) Persist(ctx context.Context, docKey string, snap replica.Snapshot) error {
	var (
		sql  string
		args []any
	)
	if snap.Version == 1 {
		sql = `INSERT INTO doc_snapshots (doc_key, version, full_update, updated_at_ms)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (doc_key) DO NOTHING`
		args = []any{docKey, snap.Version, snap.Update, snap.UpdatedAtMs}
	} else {
		sql = `UPDATE doc_snapshots
			SET version = $2, full_update = $3, updated_at_ms = $4
			WHERE doc_key = $1 AND version = $5`
		args = []any{docKey, snap.Version, snap.Update, snap.UpdatedAtMs, snap.Version - 1}
	}

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("persist %s: %w", docKey, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s: version %d", replica.ErrVersionConflict, docKey, snap.Version)
	}
	return nil
}
