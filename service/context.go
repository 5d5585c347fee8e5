package service

import (
	"errors"

	"github.com/mutanet/mutacore/types"
)

// MaxCallDepth caps nested-call recursion to prevent stack exhaustion
// from adversarial service graphs, per spec.md §4.B design-level limit.
const MaxCallDepth = 1024

// ErrMaxDepthExceeded is returned when a nested call would exceed
// MaxCallDepth.
var ErrMaxDepthExceeded = errors.New("service: max call depth exceeded")

// InvokeContext is the single owned, explicitly-threaded context
// object spec.md §9 calls for in place of the source's
// Rc<RefCell<_>> cell. CyclesUsed and Events are held behind pointers
// so every nested call shares the exact same cells; everything else
// (Service/Method/Payload/Depth) is rebound per call frame.
type InvokeContext struct {
	ChainID types.Hash
	// TxHash is the hash of the transaction currently executing; it is
	// also the message multi_signature verifies witness signatures
	// against, mirroring the source's ctx.get_tx_hash().
	TxHash      types.Hash
	Height      uint64
	Timestamp   uint64
	CyclesPrice uint64
	CyclesLimit uint64

	// CyclesUsed accumulates across every frame of the call tree.
	CyclesUsed *uint64

	Caller types.Address

	// Events accumulates across every frame. Dispatcher.Invoke
	// truncates it back to its length at the start of the tx, dropping
	// before-hook emissions too (spec.md §4.B "reverts ... before-hook
	// emissions"), when the dispatched method, an after-hook, or the
	// cycles check after the after-hooks fails; a failed nested call
	// does not truncate it.
	Events *[]types.Event

	Service string
	Method  string
	Payload string

	Depth int
}

// NewTopContext builds the root InvokeContext for a transaction.
func NewTopContext(chainID, txHash types.Hash, height, timestamp uint64, tx types.RawTransaction) *InvokeContext {
	cyclesUsed := new(uint64)
	events := new([]types.Event)
	return &InvokeContext{
		ChainID:     chainID,
		TxHash:      txHash,
		Height:      height,
		Timestamp:   timestamp,
		CyclesPrice: tx.CyclesPrice,
		CyclesLimit: tx.CyclesLimit,
		CyclesUsed:  cyclesUsed,
		Caller:      tx.Sender,
		Events:      events,
		Service:     tx.Request.ServiceName,
		Method:      tx.Request.Method,
		Payload:     tx.Request.Payload,
		Depth:       0,
	}
}

// child rebinds Service/Method/Payload/Depth for a nested call while
// keeping CyclesUsed/Events/Caller shared with the parent.
func (c *InvokeContext) child(service, method, payload string) (*InvokeContext, error) {
	if c.Depth+1 >= MaxCallDepth {
		return nil, ErrMaxDepthExceeded
	}
	next := *c
	next.Service = service
	next.Method = method
	next.Payload = payload
	next.Depth = c.Depth + 1
	return &next, nil
}

// addCycles adds cost to the shared cell and reports whether the
// budget has been exceeded.
func (c *InvokeContext) addCycles(cost uint64) bool {
	*c.CyclesUsed += cost
	return *c.CyclesUsed > c.CyclesLimit
}

// emit appends an event to the shared event list.
func (c *InvokeContext) emit(topic, data string) {
	*c.Events = append(*c.Events, types.Event{Service: c.Service, Topic: topic, Data: data})
}
