package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writes returns n incremental updates produced by a fresh replica.
func writes(t *testing.T, origin string, kv ...string) [][]byte {
	t.Helper()
	require.Equal(t, 0, len(kv)%2, "kv must be pairs")

	doc := NewDoc(origin)
	var out [][]byte
	for i := 0; i < len(kv); i += 2 {
		u, err := doc.Set(kv[i], kv[i+1])
		require.NoError(t, err)
		out = append(out, u)
	}
	return out
}

func TestMerge_Empty(t *testing.T) {
	got, err := Merge()
	require.NoError(t, err)
	assert.Equal(t, `{"ops":[]}`, string(got))
	assert.True(t, IsEmpty(got))
}

func TestMerge_Commutative(t *testing.T) {
	a := writes(t, "a", "title", "hello", "body", "x")
	b := writes(t, "b", "title", "bonjour")

	ab, err := Merge(append(append([][]byte{}, a...), b...)...)
	require.NoError(t, err)
	ba, err := Merge(append(append([][]byte{}, b...), a...)...)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
}

func TestMerge_Associative(t *testing.T) {
	a := writes(t, "a", "k", "1")[0]
	b := writes(t, "b", "k", "2")[0]
	c := writes(t, "c", "j", "3")[0]

	ab, err := Merge(a, b)
	require.NoError(t, err)
	left, err := Merge(ab, c)
	require.NoError(t, err)

	bc, err := Merge(b, c)
	require.NoError(t, err)
	right, err := Merge(a, bc)
	require.NoError(t, err)

	assert.Equal(t, left, right)
}

func TestMerge_Idempotent(t *testing.T) {
	a := writes(t, "a", "k", "1", "j", "2")
	full, err := Merge(a...)
	require.NoError(t, err)

	again, err := Merge(full, full, a[0])
	require.NoError(t, err)
	assert.Equal(t, full, again)
}

func TestMerge_Malformed(t *testing.T) {
	_, err := Merge([]byte(`{"ops":[{"origin":"","seq":1,"lamport":1}]}`))
	assert.ErrorIs(t, err, ErrMalformedUpdate)

	_, err = Merge([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedUpdate)

	_, err = Merge([]byte(`{"ops":[],"extra":1}`))
	assert.ErrorIs(t, err, ErrMalformedUpdate)
}

func TestDiff_NilVectorReturnsEverything(t *testing.T) {
	full, err := Merge(writes(t, "a", "k", "1", "j", "2")...)
	require.NoError(t, err)

	diff, err := Diff(full, nil)
	require.NoError(t, err)
	assert.Equal(t, full, diff)
}

func TestDiff_OnlyUnseen(t *testing.T) {
	a := writes(t, "a", "k", "1", "k", "2", "k", "3")
	full, err := Merge(a...)
	require.NoError(t, err)

	sv, err := EncodeStateVector(StateVector{"a": 2})
	require.NoError(t, err)

	diff, err := Diff(full, sv)
	require.NoError(t, err)

	ops, err := DecodeUpdate(diff)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, uint64(3), ops[0].Seq)
	assert.Equal(t, "3", ops[0].Value)
}

func TestDiff_OwnStateVectorIsEmpty(t *testing.T) {
	full, err := Merge(writes(t, "a", "k", "1")...)
	require.NoError(t, err)

	sv, err := Algebra{}.StateVector(full)
	require.NoError(t, err)

	diff, err := Algebra{}.Diff(full, sv)
	require.NoError(t, err)
	assert.True(t, IsEmpty(diff))
}

func TestStateVectorOf_ContiguousPrefix(t *testing.T) {
	a := writes(t, "a", "k", "1", "k", "2", "k", "3")
	// Drop seq 2 to create a gap.
	full, err := Merge(a[0], a[2])
	require.NoError(t, err)

	sv, err := StateVectorOf(full)
	require.NoError(t, err)
	assert.Equal(t, StateVector{"a": 1}, sv)
}

func TestStateVector_Covers(t *testing.T) {
	sv := StateVector{"a": 3, "b": 1}
	assert.True(t, sv.Covers(StateVector{"a": 2}))
	assert.True(t, sv.Covers(StateVector{}))
	assert.False(t, sv.Covers(StateVector{"b": 2}))
	assert.False(t, sv.Covers(StateVector{"c": 1}))
}

func TestEncodeStateVector_Sorted(t *testing.T) {
	got, err := EncodeStateVector(StateVector{"b": 1, "a": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(got))

	back, err := DecodeStateVector(got)
	require.NoError(t, err)
	assert.Equal(t, StateVector{"a": 2, "b": 1}, back)
}

func TestMaterialize_LastWriterWins(t *testing.T) {
	a := NewDoc("a")
	b := NewDoc("b")

	ua, err := a.Set("title", "from-a")
	require.NoError(t, err)
	require.NoError(t, b.Apply(ua))

	// b has seen a's write, so its lamport is higher.
	ub, err := b.Set("title", "from-b")
	require.NoError(t, err)

	full, err := Merge(ub, ua)
	require.NoError(t, err)
	state, err := Materialize(full)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "from-b"}, state)
}

func TestMaterialize_ConcurrentTieBrokenByOrigin(t *testing.T) {
	ua := writes(t, "a", "k", "x")[0]
	ub := writes(t, "b", "k", "y")[0]

	full, err := Merge(ua, ub)
	require.NoError(t, err)
	state, err := Materialize(full)
	require.NoError(t, err)
	assert.Equal(t, "y", state["k"])
}

func TestEncode_NFCNormalised(t *testing.T) {
	doc := NewDoc("a")
	// "e" + combining acute accent normalises to U+00E9.
	u, err := doc.Set("name", "cafe\u0301")
	require.NoError(t, err)

	state, err := Materialize(u)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", state["name"])
}

func TestEncode_NoHTMLEscaping(t *testing.T) {
	u := writes(t, "a", "k", "<b>&</b>")[0]
	assert.Contains(t, string(u), `"<b>&</b>"`)
}

func TestDigest_Stable(t *testing.T) {
	u := writes(t, "a", "k", "v")[0]
	assert.Equal(t, Digest(u), Digest(append([]byte{}, u...)))
	assert.Len(t, Digest(u), 12)
}
