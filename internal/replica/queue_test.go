package replica_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starrybamboo/chatsync/internal/replica"
)

func TestMemoryQueue_AppendListClear(t *testing.T) {
	ctx := context.Background()
	q := replica.NewMemoryQueue()

	require.NoError(t, q.Append(ctx, "a", []byte("1")))
	require.NoError(t, q.Append(ctx, "a", []byte("2")))
	require.NoError(t, q.Append(ctx, "b", []byte("x")))

	got, err := q.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("1"), []byte("2")}, got)

	// Entries appended after a List survive a Clear of what was listed.
	require.NoError(t, q.Append(ctx, "a", []byte("3")))
	require.NoError(t, q.Clear(ctx, "a", len(got)))

	got, err = q.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("3")}, got)

	other, err := q.List(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestMemoryQueue_AppendCopies(t *testing.T) {
	ctx := context.Background()
	q := replica.NewMemoryQueue()

	buf := []byte("abc")
	require.NoError(t, q.Append(ctx, "a", buf))
	buf[0] = 'z'

	got, err := q.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got[0])
}

func TestMemoryQueue_ClearMoreThanQueued(t *testing.T) {
	ctx := context.Background()
	q := replica.NewMemoryQueue()
	require.NoError(t, q.Append(ctx, "a", []byte("1")))

	require.NoError(t, q.Clear(ctx, "a", 10))
	got, err := q.List(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "persisted", replica.PushPersisted.String())
	assert.Equal(t, "queued", replica.PushQueued.String())
	assert.Equal(t, "updated", replica.PullUpdated.String())
	assert.Equal(t, "unavailable", replica.FetchUnavailable.String())
	assert.Equal(t, "unknown", replica.PushStatus(0).String())
}
