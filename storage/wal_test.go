package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutanet/mutacore/storage"
)

func TestWALAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := storage.OpenWAL(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(storage.Record{Height: 1, Round: 0, Bytes: []byte("pre-vote")}))
	require.NoError(t, w.Append(storage.Record{Height: 1, Round: 1, Bytes: []byte("pre-commit")}))
	require.NoError(t, w.Append(storage.Record{Height: 2, Round: 0, Bytes: []byte("pre-vote-2")}))

	records, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint64(1), records[0].Height)
	assert.Equal(t, []byte("pre-vote"), records[0].Bytes)
	assert.Equal(t, uint64(1), records[1].Round)
	assert.Equal(t, []byte("pre-vote-2"), records[2].Bytes)
}

func TestWALReplaySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := storage.OpenWAL(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(storage.Record{Height: 5, Round: 2, Bytes: []byte("choke")}))
	require.NoError(t, w.Close())

	reopened, err := storage.OpenWAL(path)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Replay()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(5), records[0].Height)
}

func TestWALTruncateDropsCommittedHeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := storage.OpenWAL(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(storage.Record{Height: 1, Bytes: []byte("a")}))
	require.NoError(t, w.Append(storage.Record{Height: 2, Bytes: []byte("b")}))
	require.NoError(t, w.Append(storage.Record{Height: 3, Bytes: []byte("c")}))

	require.NoError(t, w.Truncate(2))

	records, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(3), records[0].Height)
}
