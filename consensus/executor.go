package consensus

import "github.com/mutanet/mutacore/types"

// Executor runs one signed transaction against a block's execution
// context and returns its receipt. service.Dispatcher satisfies this
// directly.
type Executor interface {
	Invoke(header types.BlockHeader, tx types.SignedTransaction) types.Receipt
}

// ExecutorResp is the per-height execution summary
// original_source/core/consensus/src/status.rs's ExecutedInfo::new
// builds from: the receipts produced, their Merkle root, the total
// cycles spent, and the resulting state root.
type ExecutorResp struct {
	Receipts    []types.Receipt
	CyclesUsed  uint64
	StateRoot   types.MerkleRoot
	ReceiptRoot types.MerkleRoot
}

// BlockExecutor drives an Executor over an ordered tx list, producing
// the receipts and aggregate roots a commit or sync-replay needs.
type BlockExecutor struct {
	exec Executor
}

// NewBlockExecutor wraps exec (typically a *service.Dispatcher).
func NewBlockExecutor(exec Executor) *BlockExecutor {
	return &BlockExecutor{exec: exec}
}

// Execute runs every tx in order against header and folds the
// resulting receipts into an ExecutorResp. The state root is the last
// tx's StateRootAfter, or priorStateRoot if txs is
// empty — an empty block still advances exec_height with no state
// change.
func (e *BlockExecutor) Execute(header types.BlockHeader, txs []types.SignedTransaction, priorStateRoot types.MerkleRoot) ExecutorResp {
	receipts := make([]types.Receipt, len(txs))
	receiptHashes := make([]types.Hash, len(txs))
	var cyclesUsed uint64
	stateRoot := priorStateRoot
	for i, tx := range txs {
		r := e.exec.Invoke(header, tx)
		receipts[i] = r
		cyclesUsed += r.CyclesUsed
		stateRoot = r.StateRootAfter
		raw, err := r.EncodeFixed()
		if err != nil {
			panic("consensus: receipt failed to encode: " + err.Error())
		}
		receiptHashes[i] = types.Keccak256(raw)
	}
	return ExecutorResp{
		Receipts:    receipts,
		CyclesUsed:  cyclesUsed,
		StateRoot:   stateRoot,
		ReceiptRoot: types.MerkleFromHashes(receiptHashes),
	}
}
