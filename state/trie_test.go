package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutanet/mutacore/state"
	"github.com/mutanet/mutacore/types"
)

func TestTrieInsertGetRemove(t *testing.T) {
	store := state.NewMemNodeStore()
	tr := state.NewTrie(store)

	assert.Equal(t, types.FromEmpty(), tr.Root())

	tr.Insert([]byte("alpha"), []byte("1"))
	tr.Insert([]byte("album"), []byte("2"))
	tr.Insert([]byte("beta"), []byte("3"))

	v, ok := tr.Get([]byte("alpha"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	v, ok = tr.Get([]byte("album"))
	require.True(t, ok)
	assert.Equal(t, []byte("2"), v)

	_, ok = tr.Get([]byte("missing"))
	assert.False(t, ok)

	rootBefore := tr.Root()
	tr.Remove([]byte("alpha"))
	_, ok = tr.Get([]byte("alpha"))
	assert.False(t, ok)
	assert.NotEqual(t, rootBefore, tr.Root())
}

func TestOpenTrieResumesFromRoot(t *testing.T) {
	store := state.NewMemNodeStore()
	tr := state.NewTrie(store)
	tr.Insert([]byte("k1"), []byte("v1"))
	tr.Insert([]byte("k2"), []byte("v2"))
	root := tr.Root()

	reopened := state.OpenTrie(store, root)
	v, ok := reopened.Get([]byte("k1"))
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestCommitIsPureFunctionOfWrites(t *testing.T) {
	s1 := state.NewMemNodeStore()
	t1 := state.NewTrie(s1)
	t1.Insert([]byte("x"), []byte("1"))
	t1.Insert([]byte("y"), []byte("2"))
	r1 := t1.Root()

	s2 := state.NewMemNodeStore()
	t2 := state.NewTrie(s2)
	t2.Insert([]byte("x"), []byte("1"))
	t2.Insert([]byte("y"), []byte("2"))
	r2 := t2.Root()

	assert.Equal(t, r1, r2)
}
