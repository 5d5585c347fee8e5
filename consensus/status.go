// Package consensus implements spec.md §4.D: the adapter an external
// BFT engine drives to create, check, and commit blocks, plus the
// status bookkeeping that engine consults between rounds.
package consensus

import (
	"fmt"
	"sync"

	"github.com/mutanet/mutacore/types"
)

// CurrentConsensusStatus mirrors every field of
// original_source/core/consensus/src/status.rs's struct of the same
// name: the metadata-derived parameters (CyclesPrice..MaxTxSize) plus
// the execution-lag queues (ListConfirmRoot/ListStateRoot/
// ListReceiptRoot/ListCyclesUsed) that accumulate one entry per
// executed-but-not-yet-committed height.
type CurrentConsensusStatus struct {
	CyclesPrice              uint64
	CyclesLimit              uint64
	LatestCommittedHeight    uint64
	ExecHeight               uint64
	CurrentHash              types.Hash
	LatestCommittedStateRoot types.MerkleRoot
	ListConfirmRoot          []types.MerkleRoot
	ListStateRoot            []types.MerkleRoot
	ListReceiptRoot          []types.MerkleRoot
	ListCyclesUsed           []uint64
	CurrentProof             types.Proof
	Validators               []types.Validator
	ConsensusInterval        uint64
	ProposeRatio             uint64
	PrevoteRatio             uint64
	PrecommitRatio           uint64
	BrakeRatio               uint64
	TxNumLimit               uint64
	MaxTxSize                uint64
}

// GetLatestStateRoot returns the most recent executed-but-possibly-
// uncommitted state root, falling back to the last committed one.
func (s CurrentConsensusStatus) GetLatestStateRoot() types.MerkleRoot {
	if len(s.ListStateRoot) == 0 {
		return s.LatestCommittedStateRoot
	}
	return s.ListStateRoot[len(s.ListStateRoot)-1]
}

// ExecutedInfo is what BlockExecutor reports back after executing one
// height's ordered txs, mirroring status.rs's ExecutedInfo::new: the
// confirm root is the executed block's own order root, not a
// separately computed value.
type ExecutedInfo struct {
	ExecHeight  uint64
	CyclesUsed  uint64
	StateRoot   types.MerkleRoot
	ReceiptRoot types.MerkleRoot
	ConfirmRoot types.MerkleRoot
}

// StatusAgent guards CurrentConsensusStatus behind an RWMutex, the Go
// analogue of status.rs's Arc<RwLock<_>> — readers (the API surface,
// out of scope here, and the adapter's own query paths) take a shared
// lock, UpdateByExecuted/UpdateByCommitted take a unique one.
type StatusAgent struct {
	mu     sync.RWMutex
	status CurrentConsensusStatus
}

// NewStatusAgent seeds a StatusAgent with an initial status, typically
// built from genesis metadata plus an empty proof.
func NewStatusAgent(initial CurrentConsensusStatus) *StatusAgent {
	return &StatusAgent{status: initial}
}

// ToInner returns a copy of the current status.
func (a *StatusAgent) ToInner() CurrentConsensusStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// UpdateByExecuted records one more executed height's results onto
// the lag queues. A height at or below the current ExecHeight is
// ignored (a stale or duplicate report); anything else must be
// exactly ExecHeight+1, matching status.rs's assert.
func (a *StatusAgent) UpdateByExecuted(info ExecutedInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if info.ExecHeight <= a.status.ExecHeight {
		return
	}
	if info.ExecHeight != a.status.ExecHeight+1 {
		panic(fmt.Sprintf("consensus: update_by_executed out of order: got %d, want %d", info.ExecHeight, a.status.ExecHeight+1))
	}
	a.status.ExecHeight++
	a.status.ListCyclesUsed = append(a.status.ListCyclesUsed, info.CyclesUsed)
	a.status.ListConfirmRoot = append(a.status.ListConfirmRoot, info.ConfirmRoot)
	a.status.ListReceiptRoot = append(a.status.ListReceiptRoot, info.ReceiptRoot)
	a.status.ListStateRoot = append(a.status.ListStateRoot, info.StateRoot)
}

// UpdateByCommitted advances LatestCommittedHeight to block's height
// (which must be exactly the prior committed height + 1), refreshes
// the metadata-derived fields, and prunes the lag queues by splitting
// off the prefix the committed block's own root lists confirm,
// porting status.rs's split_off.
func (a *StatusAgent) UpdateByCommitted(metadata types.Metadata, block types.Block, blockHash types.Hash, proof types.Proof) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setMetadata(metadata)

	if block.Header.Height != a.status.LatestCommittedHeight+1 {
		panic(fmt.Sprintf("consensus: update_by_committed out of order: got %d, want %d", block.Header.Height, a.status.LatestCommittedHeight+1))
	}
	a.status.LatestCommittedHeight = block.Header.Height
	a.status.CurrentHash = blockHash
	a.status.CurrentProof = proof
	a.status.LatestCommittedStateRoot = block.Header.StateRoot

	a.splitOff(block)
}

func (a *StatusAgent) setMetadata(metadata types.Metadata) {
	a.status.CyclesLimit = metadata.CyclesLimit
	a.status.CyclesPrice = metadata.CyclesPrice
	a.status.ConsensusInterval = metadata.Interval
	a.status.Validators = append([]types.Validator(nil), metadata.VerifierList...)
	a.status.ProposeRatio = metadata.ProposeRatio
	a.status.PrevoteRatio = metadata.PrevoteRatio
	a.status.PrecommitRatio = metadata.PrecommitRatio
	a.status.BrakeRatio = metadata.BrakeRatio
	a.status.MaxTxSize = metadata.MaxTxSize
	a.status.TxNumLimit = metadata.TxNumLimit
}

// splitOff drops the prefix of each lag queue the committed block's
// own header root-lists confirm, after checking that prefix actually
// matches what's queued — a mismatch means the executed history and
// the committed block disagree on what was executed, which should
// never happen and is a programming error, not a runtime condition.
func (a *StatusAgent) splitOff(block types.Block) {
	n := len(block.Header.ConfirmRoot)
	if n != len(block.Header.CyclesUsed) || n != len(block.Header.ReceiptRoot) {
		panic(fmt.Sprintf("consensus: committed block root/cycles-used list lengths disagree: %+v", block.Header))
	}
	if !rootsMatch(a.status.ListCyclesUsed, block.Header.CyclesUsed) {
		panic("consensus: committed cycles_used list diverges from executed history")
	}
	if !hashesMatch(a.status.ListConfirmRoot, block.Header.ConfirmRoot) {
		panic("consensus: committed confirm_root list diverges from executed history")
	}
	if !hashesMatch(a.status.ListReceiptRoot, block.Header.ReceiptRoot) {
		panic("consensus: committed receipt_root list diverges from executed history")
	}

	a.status.ListCyclesUsed = dropPrefix(a.status.ListCyclesUsed, n)
	a.status.ListConfirmRoot = dropPrefix(a.status.ListConfirmRoot, n)
	a.status.ListReceiptRoot = dropPrefix(a.status.ListReceiptRoot, n)
	a.status.ListStateRoot = dropPrefix(a.status.ListStateRoot, n)
}

func rootsMatch(current []uint64, committed []uint64) bool {
	if len(committed) > len(current) {
		return false
	}
	for i, v := range committed {
		if current[i] != v {
			return false
		}
	}
	return true
}

func hashesMatch(current []types.Hash, committed []types.Hash) bool {
	if len(committed) > len(current) {
		return false
	}
	for i, v := range committed {
		if current[i] != v {
			return false
		}
	}
	return true
}

// dropPrefix returns s with its first n elements removed, the Go
// equivalent of Rust's Vec::split_off(n) return value.
func dropPrefix[T any](s []T, n int) []T {
	if n >= len(s) {
		return nil
	}
	out := make([]T, len(s)-n)
	copy(out, s[n:])
	return out
}
