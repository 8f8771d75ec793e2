package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starrybamboo/chatsync/internal/crdt"
	"github.com/starrybamboo/chatsync/internal/replica"
)

func TestSnapshots_VersionedWrites(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	assert.Equal(t, replica.FetchNotFound, s.Fetch(ctx, "d").Status)

	err := s.Persist(ctx, "d", replica.Snapshot{Version: 2, Update: []byte("x")})
	assert.ErrorIs(t, err, replica.ErrVersionConflict, "first write must be version 1")

	snap := replica.Snapshot{Version: 1, Update: []byte(`{"ops":[]}`), UpdatedAtMs: 42}
	require.NoError(t, s.Persist(ctx, "d", snap))

	res := s.Fetch(ctx, "d")
	require.Equal(t, replica.FetchFound, res.Status)
	assert.Equal(t, snap, res.Snapshot)

	err = s.Persist(ctx, "d", replica.Snapshot{Version: 1, Update: []byte("stale")})
	assert.ErrorIs(t, err, replica.ErrVersionConflict)

	require.NoError(t, s.Persist(ctx, "d", replica.Snapshot{Version: 2, Update: []byte("v2")}))
	res = s.Fetch(ctx, "d")
	require.Equal(t, replica.FetchFound, res.Status)
	assert.Equal(t, int64(2), res.Snapshot.Version)
	assert.Equal(t, []byte("v2"), res.Snapshot.Update)
}

func TestSnapshots_EmptyPayload(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Persist(ctx, "d", replica.Snapshot{Version: 1}))
	res := s.Fetch(ctx, "d")
	require.Equal(t, replica.FetchFound, res.Status)
	assert.Empty(t, res.Snapshot.Update)
}

func TestSnapshots_Docs(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.Persist(ctx, "b", replica.Snapshot{Version: 1}))
	require.NoError(t, s.Persist(ctx, "a", replica.Snapshot{Version: 1}))

	docs, err := s.Docs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, docs)
}

func TestSnapshots_ClosedDBIsUnavailable(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Close())

	res := s.Fetch(context.Background(), "d")
	assert.Equal(t, replica.FetchUnavailable, res.Status)
	assert.Error(t, res.Err)
}

// The store serves both roles of a single-machine replica: remote and
// durable queue.
func TestStore_BacksReplicaEngine(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	e, err := replica.New(s, crdt.Algebra{}, replica.WithQueue(s))
	require.NoError(t, err)

	doc := crdt.NewDoc("alice")
	u, err := doc.Set("topic", "dice")
	require.NoError(t, err)

	res := e.Push(ctx, "room", u)
	require.Equal(t, replica.PushPersisted, res.Status, "err: %v", res.Err)

	pull := e.Pull(ctx, "room", nil)
	require.Equal(t, replica.PullUpdated, pull.Status)
	state, err := crdt.Materialize(pull.Update)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"topic": "dice"}, state)
}
