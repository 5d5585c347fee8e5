package state_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutanet/mutacore/state"
	"github.com/mutanet/mutacore/types"
)

func encodeU64Key(v uint64) ([]byte, error) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b, nil
}

func decodeU64Key(b []byte) (uint64, error) {
	return binary.BigEndian.Uint64(b), nil
}

func encodeStringVal(v string) ([]byte, error) { return []byte(v), nil }
func decodeStringVal(b []byte) (string, error) { return string(b), nil }

func TestStoreMapBucketInvariant(t *testing.T) {
	store := state.NewMemNodeStore()
	svc := state.NewServiceState(store, types.FromEmpty())
	m := state.NewStoreMap[uint64, string](svc, "asset", encodeU64Key, decodeU64Key, encodeStringVal, decodeStringVal)

	for i := uint64(0); i < 256; i++ {
		require.NoError(t, m.Insert(i, "v"))
	}
	assert.EqualValues(t, 256, m.Len())

	seen := make(map[uint64]bool)
	m.Iterate(func(k uint64, v string) bool {
		seen[k] = true
		return true
	})
	assert.Len(t, seen, 256)
}

func TestStoreMapRemove(t *testing.T) {
	store := state.NewMemNodeStore()
	svc := state.NewServiceState(store, types.FromEmpty())
	m := state.NewStoreMap[uint64, string](svc, "m", encodeU64Key, decodeU64Key, encodeStringVal, decodeStringVal)

	require.NoError(t, m.Insert(1, "one"))
	require.NoError(t, m.Insert(2, "two"))
	assert.True(t, m.Contains(1))

	v, ok := m.Remove(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)
	assert.False(t, m.Contains(1))
	assert.EqualValues(t, 1, m.Len())

	_, ok = m.Get(1)
	assert.False(t, ok)
}

func TestServiceStateCacheStashCommitDiscipline(t *testing.T) {
	store := state.NewMemNodeStore()
	svc := state.NewServiceState(store, types.FromEmpty())

	svc.Insert([]byte("k"), []byte("v1"))
	v, ok := svc.Get([]byte("k"))
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	// Revert drops only the cache tier.
	svc.Revert()
	_, ok = svc.Get([]byte("k"))
	assert.False(t, ok)

	svc.Insert([]byte("k"), []byte("v2"))
	svc.Stash()
	// A revert after stash must not remove the stashed write.
	svc.Revert()
	v, ok = svc.Get([]byte("k"))
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), v)

	root := svc.Commit()
	assert.NotEqual(t, types.FromEmpty(), root)

	v, ok = svc.Get([]byte("k"))
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), v)
}

func TestRevertThenCommitEqualsUntouchedCommit(t *testing.T) {
	store1 := state.NewMemNodeStore()
	svc1 := state.NewServiceState(store1, types.FromEmpty())
	svc1.Insert([]byte("a"), []byte("1"))
	svc1.Stash()
	root1 := svc1.Commit()

	store2 := state.NewMemNodeStore()
	svc2 := state.NewServiceState(store2, types.FromEmpty())
	svc2.Insert([]byte("a"), []byte("1"))
	svc2.Stash()
	svc2.Insert([]byte("garbage"), []byte("x"))
	svc2.Revert()
	root2 := svc2.Commit()

	assert.Equal(t, root1, root2)
}
