// Package storage generalizes the teacher's crypto/database Batch/Database
// contract into the four logical keyspaces spec.md §6 persists: blocks by
// height, transactions by hash, receipts by hash, and the latest proof.
// The key-prefix scheme is directly modeled on
// original_source/core/storage/src/storage.rs's PREFIX_* constants and
// gen_key_with_slice/gen_key_with_u64 helpers.
package storage

import (
	"encoding/binary"
	"errors"

	"github.com/luxfi/database"

	"github.com/mutanet/mutacore/types"
)

// Key prefixes, one byte each, namespacing the four logical keyspaces
// inside a single flat KV database.
const (
	prefixLatestProof byte = 0x01
	prefixBlock       byte = 0x02
	prefixBlockHash   byte = 0x03 // height-by-hash index
	prefixTx          byte = 0x04
	prefixReceipt      byte = 0x05
	prefixTrieNode     byte = 0x06
)

var latestProofKey = []byte{prefixLatestProof}

// ErrNotFound is returned when a lookup key is absent.
var ErrNotFound = errors.New("storage: not found")

func prefixKey(prefix byte, suffix []byte) []byte {
	out := make([]byte, 1+len(suffix))
	out[0] = prefix
	copy(out[1:], suffix)
	return out
}

func heightKey(prefix byte, height uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], height)
	return prefixKey(prefix, b[:])
}

// Storage persists blocks, transactions, receipts, and the latest proof
// over a github.com/luxfi/database.Database, per spec.md §6.
type Storage struct {
	db database.Database
}

// New wraps db as a Storage.
func New(db database.Database) *Storage {
	return &Storage{db: db}
}

// PutBlock writes block both under its height and under a hash→height
// index entry, mirroring the source's insert_block.
func (s *Storage) PutBlock(block types.Block) error {
	raw, err := block.EncodeFixed()
	if err != nil {
		return err
	}
	blockHash := types.Keccak256(raw)
	batch := s.db.NewBatch()
	if err := batch.Put(heightKey(prefixBlock, block.Header.Height), raw); err != nil {
		return err
	}
	if err := batch.Put(prefixKey(prefixBlockHash, blockHash.Bytes()), heightBytes(block.Header.Height)); err != nil {
		return err
	}
	return batch.Write()
}

func heightBytes(h uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], h)
	return b[:]
}

// GetBlockByHeight reads back a previously-written block.
func (s *Storage) GetBlockByHeight(height uint64) (types.Block, error) {
	raw, err := s.db.Get(heightKey(prefixBlock, height))
	if err != nil {
		var zero types.Block
		return zero, ErrNotFound
	}
	return types.DecodeBlock(raw)
}

// GetBlockByHash resolves hash to a height via the index, then reads
// the block at that height.
func (s *Storage) GetBlockByHash(hash types.Hash) (types.Block, error) {
	raw, err := s.db.Get(prefixKey(prefixBlockHash, hash.Bytes()))
	if err != nil {
		var zero types.Block
		return zero, ErrNotFound
	}
	height := binary.BigEndian.Uint64(raw)
	return s.GetBlockByHeight(height)
}

// PutTransactions persists a batch of signed transactions keyed by hash.
func (s *Storage) PutTransactions(txs []types.SignedTransaction) error {
	batch := s.db.NewBatch()
	for _, tx := range txs {
		raw, err := tx.EncodeFixed()
		if err != nil {
			return err
		}
		if err := batch.Put(prefixKey(prefixTx, tx.TxHash.Bytes()), raw); err != nil {
			return err
		}
	}
	return batch.Write()
}

// GetTransaction looks up one signed transaction by hash.
func (s *Storage) GetTransaction(hash types.Hash) (types.SignedTransaction, error) {
	raw, err := s.db.Get(prefixKey(prefixTx, hash.Bytes()))
	if err != nil {
		var zero types.SignedTransaction
		return zero, ErrNotFound
	}
	return types.DecodeSignedTransaction(raw)
}

// HasTransaction reports whether hash is already committed, used by
// the mempool's admission pipeline (spec.md §4.C step 4).
func (s *Storage) HasTransaction(hash types.Hash) bool {
	ok, err := s.db.Has(prefixKey(prefixTx, hash.Bytes()))
	return err == nil && ok
}

// PutReceipts persists a batch of receipts keyed by tx hash.
func (s *Storage) PutReceipts(receipts []types.Receipt) error {
	batch := s.db.NewBatch()
	for _, r := range receipts {
		raw, err := r.EncodeFixed()
		if err != nil {
			return err
		}
		if err := batch.Put(prefixKey(prefixReceipt, r.TxHash.Bytes()), raw); err != nil {
			return err
		}
	}
	return batch.Write()
}

// GetReceipt looks up one receipt by tx hash.
func (s *Storage) GetReceipt(hash types.Hash) (types.Receipt, error) {
	raw, err := s.db.Get(prefixKey(prefixReceipt, hash.Bytes()))
	if err != nil {
		var zero types.Receipt
		return zero, ErrNotFound
	}
	return types.DecodeReceipt(raw)
}

// PutLatestProof records the most recently committed block's proof,
// consulted by the adapter and syncer on restart.
func (s *Storage) PutLatestProof(proof types.Proof) error {
	raw, err := proof.EncodeFixed()
	if err != nil {
		return err
	}
	return s.db.Put(latestProofKey, raw)
}

// GetLatestProof returns the most recently recorded proof, if any.
func (s *Storage) GetLatestProof() (types.Proof, error) {
	raw, err := s.db.Get(latestProofKey)
	if err != nil {
		var zero types.Proof
		return zero, ErrNotFound
	}
	return types.DecodeProof(raw)
}

// TrieNodeStore wraps the same underlying database under a dedicated
// prefix, letting state.Store persist its Merkle Patricia Trie nodes
// through the one real KV engine the node opens rather than the
// in-memory state.MemNodeStore, per state/memstore.go's doc comment
// anticipating "a real luxfi/database-backed one ... wired in by the
// storage package."
type TrieNodeStore struct {
	db database.Database
}

// NewTrieNodeStore wraps db for state.NodeStore use.
func NewTrieNodeStore(db database.Database) *TrieNodeStore {
	return &TrieNodeStore{db: db}
}

// Get implements state.NodeStore.
func (t *TrieNodeStore) Get(h types.Hash) ([]byte, bool) {
	raw, err := t.db.Get(prefixKey(prefixTrieNode, h.Bytes()))
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Put implements state.NodeStore. Trie nodes are content-addressed, so
// a write failure here is a storage-layer fault the caller cannot
// meaningfully recover from; state.Store's callers already assume Put
// never fails (mirroring MemNodeStore's signature).
func (t *TrieNodeStore) Put(h types.Hash, data []byte) {
	if err := t.db.Put(prefixKey(prefixTrieNode, h.Bytes()), data); err != nil {
		panic("storage: trie node put failed: " + err.Error())
	}
}
