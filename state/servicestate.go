package state

import (
	"github.com/mutanet/mutacore/crypto/hash"
	"github.com/mutanet/mutacore/types"
)

// ServiceState is one service's scoped handle onto its own sub-trie,
// implementing the three-tier cache/stash/commit write discipline of
// spec.md §4.A:
//
//  1. cache  — writes of the current in-flight call; Revert drops only this tier.
//  2. stash  — cache promoted after a successful tx; survives further txs in the block.
//  3. trie   — stash flushed at block commit, yielding the new sub-trie root.
//
// A read consults cache, then stash, then the trie, in that order.
type ServiceState struct {
	trie  *Trie
	cache map[string][]byte
	stash map[string][]byte
}

// NewServiceState opens (or creates) a service's sub-trie at the given
// previously-committed root.
func NewServiceState(store NodeStore, root types.Hash) *ServiceState {
	return &ServiceState{
		trie:  OpenTrie(store, root),
		cache: make(map[string][]byte),
		stash: make(map[string][]byte),
	}
}

// Get consults cache, then stash, then the underlying trie.
func (s *ServiceState) Get(key []byte) ([]byte, bool) {
	k := string(key)
	if v, ok := s.cache[k]; ok {
		return deletedOrValue(v)
	}
	if v, ok := s.stash[k]; ok {
		return deletedOrValue(v)
	}
	return s.trie.Get(key)
}

// sentinel marks a tombstone in cache/stash so a delete-then-read
// within the same call correctly observes absence even though the
// underlying trie (checked only at Commit) still has the old value.
var tombstone = []byte{0xff, 'd', 'e', 'l'}

func deletedOrValue(v []byte) ([]byte, bool) {
	if isTombstone(v) {
		return nil, false
	}
	return v, true
}

func isTombstone(v []byte) bool {
	return len(v) == len(tombstone) && bytesEqual(v, tombstone)
}

// Insert writes key=value into the cache tier.
func (s *ServiceState) Insert(key, value []byte) {
	s.cache[string(key)] = value
}

// Remove marks key deleted in the cache tier.
func (s *ServiceState) Remove(key []byte) {
	s.cache[string(key)] = tombstone
}

// Revert discards the cache tier only; stash (and the trie) are
// untouched, matching spec.md §4.A: "a revert between txs never
// touches stash."
func (s *ServiceState) Revert() {
	s.cache = make(map[string][]byte)
}

// Stash promotes the cache tier into stash after a successful tx.
func (s *ServiceState) Stash() {
	for k, v := range s.cache {
		s.stash[k] = v
	}
	s.cache = make(map[string][]byte)
}

// Commit flushes the stash tier into the trie and returns the new
// sub-trie root. Safe to call once per tx (to produce a receipt's
// state_root_after) as well as at block end, since the trie is
// persistent and commit is a pure function of the stashed writes.
func (s *ServiceState) Commit() types.Hash {
	for k, v := range s.stash {
		if isTombstone(v) {
			s.trie.Remove([]byte(k))
		} else {
			s.trie.Insert([]byte(k), v)
		}
	}
	s.stash = make(map[string][]byte)
	return s.trie.Root()
}

// accountKey namespaces key under addr so per-address storage cannot
// collide with a service's own scalar/map/array cells.
func accountKey(addr types.Address, key []byte) []byte {
	h := hash.Sum256(addr.Bytes(), key)
	return h[:]
}

// GetAccountValue reads a value isolated under addr's namespace.
func (s *ServiceState) GetAccountValue(addr types.Address, key []byte) ([]byte, bool) {
	return s.Get(accountKey(addr, key))
}

// SetAccountValue writes a value isolated under addr's namespace.
func (s *ServiceState) SetAccountValue(addr types.Address, key []byte, value []byte) {
	s.Insert(accountKey(addr, key), value)
}
