package remote

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starrybamboo/chatsync/internal/replica"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "test:")
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_Contract(t *testing.T) {
	store, _ := newTestRedis(t)
	runStoreContract(t, store)
}

func TestRedisStore_Prefix(t *testing.T) {
	store, mr := newTestRedis(t)
	require.NoError(t, store.Persist(context.Background(), "doc", replica.Snapshot{Version: 1}))
	assert.True(t, mr.Exists("test:doc"))
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := newTestRedis(t)
	require.NoError(t, mr.Set("test:doc", "not an envelope"))

	res := store.Fetch(context.Background(), "doc")
	assert.Equal(t, replica.FetchNotFound, res.Status)
	assert.ErrorIs(t, res.Err, replica.ErrCorruptSnapshot)
}

func TestRedisStore_Unreachable(t *testing.T) {
	store, mr := newTestRedis(t)
	mr.Close()

	res := store.Fetch(context.Background(), "doc")
	assert.Equal(t, replica.FetchUnavailable, res.Status)

	err := store.Persist(context.Background(), "doc", replica.Snapshot{Version: 1})
	assert.Error(t, err)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := DialRedis(context.Background(), mr.Addr(), 0, "p:")
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
