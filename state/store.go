package state

import (
	"github.com/mutanet/mutacore/crypto/hash"
	"github.com/mutanet/mutacore/types"
)

// Store owns the top-level MPT, keyed by hash(service_name), whose
// leaves are the roots of each service's own sub-trie (spec.md §3
// "Service State"). The Runtime lends out a ServiceState handle per
// service; Dispatcher.RunGenesis commits the Store once at height 0
// and Dispatcher.Invoke commits it after every tx, so the top-level
// trie is written once per tx rather than once per block.
type Store struct {
	nodeStore NodeStore
	top       *Trie
	services  map[string]*ServiceState
}

// NewStore opens the top-level trie at root (FromEmpty() for a fresh
// chain) over the given node store.
func NewStore(nodeStore NodeStore, root types.Hash) *Store {
	return &Store{
		nodeStore: nodeStore,
		top:       OpenTrie(nodeStore, root),
		services:  make(map[string]*ServiceState),
	}
}

func serviceKey(name string) types.Hash {
	return hash.Sum256([]byte(name))
}

// Service returns (opening lazily from the top-level trie on first
// use) the scoped ServiceState for name.
func (s *Store) Service(name string) *ServiceState {
	if svc, ok := s.services[name]; ok {
		return svc
	}
	key := serviceKey(name)
	var subRoot types.Hash
	if raw, ok := s.top.Get(key[:]); ok {
		copy(subRoot[:], raw)
	}
	svc := NewServiceState(s.nodeStore, subRoot)
	s.services[name] = svc
	return svc
}

// Commit flushes every touched service's stash into its sub-trie,
// writes the resulting sub-trie roots into the top-level trie, and
// returns the new top-level state root. The trie is persistent and
// content-addressed, so Dispatcher.Invoke calls this once per tx to
// produce each receipt's state_root_after; nothing calls it again at
// block end.
func (s *Store) Commit() types.Hash {
	for name, svc := range s.services {
		subRoot := svc.Commit()
		key := serviceKey(name)
		s.top.Insert(key[:], subRoot[:])
	}
	return s.top.Root()
}
