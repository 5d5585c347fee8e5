package state

import (
	"sync"

	"github.com/mutanet/mutacore/types"
)

// MemNodeStore is an in-memory NodeStore, used in tests and as the
// default store before a real luxfi/database-backed one is wired in by
// the storage package.
type MemNodeStore struct {
	mu sync.RWMutex
	m  map[types.Hash][]byte
}

// NewMemNodeStore returns an empty in-memory node store.
func NewMemNodeStore() *MemNodeStore {
	return &MemNodeStore{m: make(map[types.Hash][]byte)}
}

// Get implements NodeStore.
func (s *MemNodeStore) Get(h types.Hash) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[h]
	return v, ok
}

// Put implements NodeStore.
func (s *MemNodeStore) Put(h types.Hash, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[h] = data
}
