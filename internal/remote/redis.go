package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/starrybamboo/chatsync/internal/replica"
)

// RedisStore keeps one envelope string per document under prefix+key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. prefix namespaces the keys
// (e.g. "chatsync:snapshot:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis connects to addr/db and verifies the connection.
func DialRedis(ctx context.Context, addr string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedisStore(client, prefix), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(docKey string) string {
	return s.prefix + docKey
}

// Fetch implements replica.RemoteStore.
func (s *RedisStore) Fetch(ctx context.Context, docKey string) replica.FetchResult {
	raw, err := s.client.Get(ctx, s.key(docKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return replica.NotFound()
	}
	if err != nil {
		return replica.Unavailable(fmt.Errorf("fetch %s: %w", docKey, err))
	}
	return DecodeEnvelope(raw)
}

// Persist implements replica.RemoteStore. The version check and the write
// run in one WATCH/MULTI transaction; a concurrent writer aborts it.
func (s *RedisStore) Persist(ctx context.Context, docKey string, snap replica.Snapshot) error {
	raw, err := EncodeEnvelope(snap)
	if err != nil {
		return fmt.Errorf("persist %s: %w", docKey, err)
	}
	key := s.key(docKey)

	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}
		if err := checkVersion(docKey, storedVersion(cur), exists, snap.Version); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: %s: concurrent write", replica.ErrVersionConflict, docKey)
	case errors.Is(err, replica.ErrVersionConflict):
		return err
	default:
		return fmt.Errorf("persist %s: %w", docKey, err)
	}
}
