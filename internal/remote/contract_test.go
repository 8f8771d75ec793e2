package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starrybamboo/chatsync/internal/replica"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, store replica.RemoteStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key is not found", func(t *testing.T) {
		res := store.Fetch(ctx, "contract-missing")
		assert.Equal(t, replica.FetchNotFound, res.Status)
		assert.NoError(t, res.Err)
	})

	t.Run("round trip", func(t *testing.T) {
		snap := replica.Snapshot{Version: 1, Update: []byte(`{"ops":[]}`), UpdatedAtMs: 1700000000000}
		require.NoError(t, store.Persist(ctx, "contract-doc", snap))

		res := store.Fetch(ctx, "contract-doc")
		require.Equal(t, replica.FetchFound, res.Status)
		assert.Equal(t, snap, res.Snapshot)
	})

	t.Run("next version accepted", func(t *testing.T) {
		snap := replica.Snapshot{Version: 2, Update: []byte("v2"), UpdatedAtMs: 2}
		require.NoError(t, store.Persist(ctx, "contract-doc", snap))

		res := store.Fetch(ctx, "contract-doc")
		require.Equal(t, replica.FetchFound, res.Status)
		assert.Equal(t, int64(2), res.Snapshot.Version)
		assert.Equal(t, []byte("v2"), res.Snapshot.Update)
	})

	t.Run("stale version rejected", func(t *testing.T) {
		err := store.Persist(ctx, "contract-doc", replica.Snapshot{Version: 2, Update: []byte("again")})
		assert.ErrorIs(t, err, replica.ErrVersionConflict)

		res := store.Fetch(ctx, "contract-doc")
		require.Equal(t, replica.FetchFound, res.Status)
		assert.Equal(t, []byte("v2"), res.Snapshot.Update)
	})

	t.Run("skipping versions rejected", func(t *testing.T) {
		err := store.Persist(ctx, "contract-doc", replica.Snapshot{Version: 5})
		assert.ErrorIs(t, err, replica.ErrVersionConflict)
	})

	t.Run("first write must be version 1", func(t *testing.T) {
		err := store.Persist(ctx, "contract-fresh", replica.Snapshot{Version: 2})
		assert.ErrorIs(t, err, replica.ErrVersionConflict)
	})
}
