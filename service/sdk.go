package service

import (
	"github.com/mutanet/mutacore/state"
	"github.com/mutanet/mutacore/types"
)

// SDK is the only surface a service handler sees: its own
// ServiceState, the InvokeContext shared across the whole call tree,
// and a back-reference to the Dispatcher for issuing nested calls.
// This mirrors the source's ServiceSDK trait, flattened into a
// concrete struct since Go handlers take it by pointer rather than by
// generic trait bound.
type SDK struct {
	state      *state.ServiceState
	ctx        *InvokeContext
	dispatcher *Dispatcher
	touched    touchSet
}

// Get reads a bare key from the service's own sub-trie.
func (s *SDK) Get(key []byte) ([]byte, bool) { return s.state.Get(key) }

// Insert writes a bare key in the service's own sub-trie.
func (s *SDK) Insert(key, value []byte) { s.state.Insert(key, value) }

// Remove deletes a bare key from the service's own sub-trie.
func (s *SDK) Remove(key []byte) { s.state.Remove(key) }

// GetAccountValue reads a per-account value cell.
func (s *SDK) GetAccountValue(addr types.Address, key []byte) ([]byte, bool) {
	return s.state.GetAccountValue(addr, key)
}

// SetAccountValue writes a per-account value cell.
func (s *SDK) SetAccountValue(addr types.Address, key, value []byte) {
	s.state.SetAccountValue(addr, key, value)
}

// EmitEvent appends an event to the shared, cross-frame event list.
func (s *SDK) EmitEvent(topic, data string) { s.ctx.emit(topic, data) }

// Caller returns the original transaction sender, unchanged across
// every nested frame.
func (s *SDK) Caller() types.Address { return s.ctx.Caller }

// Height returns the block height being executed.
func (s *SDK) Height() uint64 { return s.ctx.Height }

// Timestamp returns the block timestamp being executed.
func (s *SDK) Timestamp() uint64 { return s.ctx.Timestamp }

// ChainID returns the chain identifier.
func (s *SDK) ChainID() types.Hash { return s.ctx.ChainID }

// TxHash returns the hash of the transaction currently executing.
func (s *SDK) TxHash() types.Hash { return s.ctx.TxHash }

// CyclesUsed returns the cumulative cycles spent so far across the
// whole call tree.
func (s *SDK) CyclesUsed() uint64 { return *s.ctx.CyclesUsed }

// CallService issues a nested call into another service's method,
// sharing this SDK's CyclesUsed/Events cells and depth counter.
func (s *SDK) CallService(serviceName, method, payload string) ServiceResponse {
	return s.dispatcher.nestedCall(s.ctx, s.touched, serviceName, method, payload)
}
