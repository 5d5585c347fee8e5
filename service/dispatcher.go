package service

import (
	"encoding/json"
	"fmt"

	"github.com/mutanet/mutacore/state"
	"github.com/mutanet/mutacore/types"
)

// accountService is the reserved service name under which the
// dispatcher tracks sender nonces. It is not a registrable Service:
// no user code can bind methods to it.
const accountService = "__account__"

var nonceKey = []byte("nonce")

// ErrOutOfCycles is the dispatch-level failure when cycles_used
// exceeds cycles_limit at any point during a tx, per spec.md §4.B.
var ErrOutOfCycles = fmt.Errorf("service: out of cycles")

// Dispatcher binds a Registry to a state.Store and implements the
// five-step per-tx pipeline of spec.md §4.B.
type Dispatcher struct {
	registry *Registry
	store    *state.Store
}

// NewDispatcher builds a Dispatcher over registry and store.
func NewDispatcher(registry *Registry, store *state.Store) *Dispatcher {
	return &Dispatcher{registry: registry, store: store}
}

// touchSet tracks every ServiceState opened while executing one tx,
// so it can be stashed-or-reverted as a unit at the end.
type touchSet map[string]*state.ServiceState

func (d *Dispatcher) touch(t touchSet, name string) *state.ServiceState {
	if st, ok := t[name]; ok {
		return st
	}
	st := d.store.Service(name)
	t[name] = st
	return st
}

func (t touchSet) revertAll() {
	for _, st := range t {
		st.Revert()
	}
}

func (t touchSet) stashAll() {
	for _, st := range t {
		st.Stash()
	}
}

// Invoke executes one signed transaction against header's execution
// context and returns its receipt. It never returns an error: every
// failure mode becomes a failure receipt, per spec.md §4.B "a single
// tx failure never aborts the block."
func (d *Dispatcher) Invoke(header types.BlockHeader, tx types.SignedTransaction) types.Receipt {
	ctx := NewTopContext(header.ChainID, tx.TxHash, header.Height, header.Timestamp, tx.Raw)
	touched := make(touchSet)

	fail := func(code uint64, message string) types.Receipt {
		touched.revertAll()
		d.bumpNonce(touched, ctx.Caller)
		touched.stashAll()
		root := d.store.Commit()
		return d.buildReceipt(tx.TxHash, header.Height, root, ctx, Fail(code, message))
	}

	// Step 2: before-tx hooks, declaration order.
	eventMark := len(*ctx.Events)
	for _, svc := range d.registry.Ordered() {
		if svc.BeforeHook == nil {
			continue
		}
		st := d.touch(touched, svc.Name)
		sdk := &SDK{state: st, ctx: ctx, dispatcher: d, touched: touched}
		if err := svc.BeforeHook(sdk); err != nil {
			return fail(1, "before_tx_hook: "+err.Error())
		}
	}
	if *ctx.CyclesUsed > ctx.CyclesLimit {
		return fail(2, ErrOutOfCycles.Error())
	}

	// Step 3: dispatch to the target service/method.
	resp := d.invokeMethod(ctx, touched, tx.Raw.Request.ServiceName, tx.Raw.Request.Method, tx.Raw.Request.Payload)
	if resp.IsError() {
		*ctx.Events = (*ctx.Events)[:eventMark]
		return fail(resp.Code, resp.ErrorMessage)
	}
	if *ctx.CyclesUsed > ctx.CyclesLimit {
		return fail(2, ErrOutOfCycles.Error())
	}

	// Step 4: after-tx hooks, declaration order.
	for _, svc := range d.registry.Ordered() {
		if svc.AfterHook == nil {
			continue
		}
		st := d.touch(touched, svc.Name)
		sdk := &SDK{state: st, ctx: ctx, dispatcher: d, touched: touched}
		if err := svc.AfterHook(sdk); err != nil {
			*ctx.Events = (*ctx.Events)[:eventMark]
			return fail(3, "after_tx_hook: "+err.Error())
		}
	}
	if *ctx.CyclesUsed > ctx.CyclesLimit {
		*ctx.Events = (*ctx.Events)[:eventMark]
		return fail(2, ErrOutOfCycles.Error())
	}

	// Step 5: stash every touched sub-trie and bump the sender nonce.
	d.bumpNonce(touched, ctx.Caller)
	touched.stashAll()
	root := d.store.Commit()
	return d.buildReceipt(tx.TxHash, header.Height, root, ctx, resp)
}

// invokeMethod checks that the payload is well-formed JSON (an empty
// payload is also accepted) and dispatches to the named service's
// method, charging its declared cycle cost first. The handler receives
// the raw payload string and decodes it itself, so a payload that is
// valid JSON but does not fit the method's arguments fails inside the
// handler.
func (d *Dispatcher) invokeMethod(ctx *InvokeContext, touched touchSet, serviceName, method, payload string) ServiceResponse {
	svc, ok := d.registry.Lookup(serviceName)
	if !ok {
		return Fail(10, "service not found: "+serviceName)
	}
	binding, ok := svc.Methods[method]
	if !ok {
		return Fail(11, "method not found: "+serviceName+"."+method)
	}
	if !json.Valid([]byte(payload)) && payload != "" {
		return Fail(12, "malformed payload")
	}
	if ctx.addCycles(binding.CycleCost) {
		return Fail(2, ErrOutOfCycles.Error())
	}
	st := d.touch(touched, serviceName)
	sdk := &SDK{state: st, ctx: ctx, dispatcher: d, touched: touched}
	return binding.Handler(sdk, payload)
}

// nestedCall is invoked by SDK.CallService. It threads the same
// InvokeContext one Depth deeper, so cycles/events/caller stay shared
// with the outer frame, and reuses the caller's touchSet so the nested
// service's writes are stashed-or-reverted together with the rest of
// the tx.
func (d *Dispatcher) nestedCall(parent *InvokeContext, touched touchSet, serviceName, method, payload string) ServiceResponse {
	child, err := parent.child(serviceName, method, payload)
	if err != nil {
		return Fail(13, err.Error())
	}
	svc, ok := d.registry.Lookup(serviceName)
	if !ok {
		return Fail(10, "service not found: "+serviceName)
	}
	binding, ok := svc.Methods[method]
	if !ok {
		return Fail(11, "method not found: "+serviceName+"."+method)
	}
	if child.addCycles(binding.CycleCost) {
		return Fail(2, ErrOutOfCycles.Error())
	}
	st := d.touch(touched, serviceName)
	sdk := &SDK{state: st, ctx: child, dispatcher: d, touched: touched}
	return binding.Handler(sdk, payload)
}

func (d *Dispatcher) bumpNonce(touched touchSet, caller types.Address) {
	st := d.touch(touched, accountService)
	var nonce uint64
	if raw, ok := st.GetAccountValue(caller, nonceKey); ok && len(raw) == 8 {
		nonce = decodeUint64(raw)
	}
	st.SetAccountValue(caller, nonceKey, encodeUint64(nonce+1))
}

func (d *Dispatcher) buildReceipt(txHash types.Hash, height uint64, root types.Hash, ctx *InvokeContext, resp ServiceResponse) types.Receipt {
	return types.Receipt{
		StateRootAfter: root,
		BlockHeight:    height,
		TxHash:         txHash,
		CyclesUsed:     *ctx.CyclesUsed,
		Events:         append([]types.Event(nil), *ctx.Events...),
		Response: types.ServiceCallResponse{
			Service: ctx.Service,
			Method:  ctx.Method,
			Ret:     resp.SucceedData,
			IsError: resp.IsError(),
		},
	}
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
	return b
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// RunGenesis executes every registered service's genesis method once,
// in declaration order, as a single implicit tx with a very large
// cycle budget and the proposer as caller, per spec.md §4.B. payloads
// maps service name to its configured genesis payload.
func (d *Dispatcher) RunGenesis(chainID types.Hash, proposer types.Address, payloads map[string]string) (types.Hash, error) {
	const genesisCycleLimit = ^uint64(0)
	cyclesUsed := new(uint64)
	events := new([]types.Event)
	ctx := &InvokeContext{
		ChainID:     chainID,
		Height:      0,
		Timestamp:   0,
		CyclesPrice: 0,
		CyclesLimit: genesisCycleLimit,
		CyclesUsed:  cyclesUsed,
		Caller:      proposer,
		Events:      events,
	}
	touched := make(touchSet)
	for _, svc := range d.registry.Ordered() {
		if svc.Genesis == nil {
			continue
		}
		ctx.Service = svc.Name
		ctx.Method = "genesis"
		ctx.Payload = payloads[svc.Name]
		st := d.touch(touched, svc.Name)
		sdk := &SDK{state: st, ctx: ctx, dispatcher: d, touched: touched}
		resp := svc.Genesis(sdk, ctx.Payload)
		if resp.IsError() {
			return types.Hash{}, fmt.Errorf("service: genesis failed for %s: %s", svc.Name, resp.ErrorMessage)
		}
	}
	touched.stashAll()
	return d.store.Commit(), nil
}
