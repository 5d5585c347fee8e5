// Package sync implements spec.md §4.E block sync: the catch-up path
// triggered when a received height broadcast exceeds local_latest+1,
// generalizing the teacher's engine/chain/syncer/syncer.go stub
// (Config{GetHandler, Sender, Beacons}) into a real pull-execute-verify
// loop over the Consensus Adapter's collaborators.
package sync

import (
	"context"
	"sync"

	"github.com/mutanet/mutacore/consensus"
	"github.com/mutanet/mutacore/log"
	"github.com/mutanet/mutacore/metrics"
	"github.com/mutanet/mutacore/types"
)

// Storage is the subset of *storage.Storage the syncer persists
// replayed blocks through. It matches consensus.Storage's shape.
type Storage interface {
	PutBlock(block types.Block) error
	PutTransactions(txs []types.SignedTransaction) error
	PutReceipts(receipts []types.Receipt) error
	PutLatestProof(proof types.Proof) error
	GetBlockByHeight(height uint64) (types.Block, error)
}

// BlockSource pulls blocks and their full tx sets from a remote peer
// via the sync_pull_block and mempool pull_txs RPC endpoints of
// spec.md §6. Which peer each pull goes to is up to the
// implementation; this module ships none, and cmd/mutanode wires only
// a no-op network.AppSender.
type BlockSource interface {
	PullBlock(ctx context.Context, height uint64) (types.Block, error)
	PullTxs(ctx context.Context, hashes []types.Hash) ([]types.SignedTransaction, error)
}

// ValidatorSource answers the validator-set-at-height query the syncer
// needs to verify each pulled block's proof against the set that was
// current one height earlier, and is refreshed the same way
// consensus.Adapter.Commit refreshes it: from the freshly replayed
// block's own Validators list.
type ValidatorSource interface {
	GetValidators(height uint64) []types.Validator
	Update(validators []types.Validator)
}

// Syncer drives the pull-execute-verify loop of spec.md §4.E.
type Syncer struct {
	storage  Storage
	source   BlockSource
	executor *consensus.BlockExecutor
	status   *consensus.StatusAgent
	vmgr     ValidatorSource
	commitMu *sync.Mutex
	logger   log.Logger
	metrics  *metrics.NodeMetrics
}

// New builds a Syncer. commitMu is the exact mutex shared with
// consensus.Adapter (pass &adapter.CommitMu), per spec.md §4.E step 1.
func New(storage Storage, source BlockSource, executor *consensus.BlockExecutor, status *consensus.StatusAgent, vmgr ValidatorSource, commitMu *sync.Mutex, logger log.Logger, m *metrics.NodeMetrics) *Syncer {
	return &Syncer{
		storage:  storage,
		source:   source,
		executor: executor,
		status:   status,
		vmgr:     vmgr,
		commitMu: commitMu,
		logger:   logger,
		metrics:  m,
	}
}

// Run catches the node up to targetHeight, as triggered by a received
// broadcast_height exceeding local_latest+1. It abandons immediately
// if the commit mutex is already held by a live commit, per spec.md
// §4.E step 1.
func (s *Syncer) Run(ctx context.Context, targetHeight uint64) error {
	if !s.commitMu.TryLock() {
		return ErrAbandoned
	}
	defer s.commitMu.Unlock()

	status := s.status.ToInner()
	height := status.LatestCommittedHeight
	stateRoot := status.LatestCommittedStateRoot

	for height < targetHeight {
		next := height + 1

		prior, err := s.storage.GetBlockByHeight(height)
		if err != nil {
			return err
		}
		priorHash := types.Keccak256(mustEncodeHeader(prior.Header))

		block, err := s.source.PullBlock(ctx, next)
		if err != nil {
			return err
		}
		if block.Header.PrevHash != priorHash {
			return &FailError{Reason: ReasonBlockHashMismatch, Height: next}
		}

		priorValidators := s.vmgr.GetValidators(height)
		if err := consensus.VerifyProof(block.Header.Proof, priorValidators); err != nil {
			return err
		}

		txs, err := s.source.PullTxs(ctx, block.OrderedTxHashes)
		if err != nil {
			return &MsgsLostError{Height: next}
		}
		orderRoot := types.MerkleFromHashes(hashesOf(txs))
		if orderRoot != block.Header.OrderRoot {
			return &FailError{Reason: ReasonBlockHashMismatch, Height: next}
		}

		resp := s.executor.Execute(block.Header, txs, stateRoot)
		if resp.StateRoot != block.Header.StateRoot {
			return &FailError{Reason: ReasonDivergence, Height: next}
		}

		if err := s.storage.PutTransactions(txs); err != nil {
			return err
		}
		if err := s.storage.PutBlock(block); err != nil {
			return err
		}
		if err := s.storage.PutReceipts(resp.Receipts); err != nil {
			return err
		}
		if err := s.storage.PutLatestProof(block.Header.Proof); err != nil {
			return err
		}

		// Publish into the live status agent one height at a time, the
		// same executed-then-committed pair consensus.Adapter.Commit
		// issues, so UpdateByExecuted/UpdateByCommitted's sequence
		// invariants never see a gap wider than one height.
		blockHash := types.Keccak256(mustEncodeHeader(block.Header))
		s.status.UpdateByExecuted(consensus.ExecutedInfo{
			ExecHeight:  block.Header.Height,
			CyclesUsed:  resp.CyclesUsed,
			StateRoot:   resp.StateRoot,
			ReceiptRoot: resp.ReceiptRoot,
			ConfirmRoot: block.Header.OrderRoot,
		})
		metadata := nextMetadata(status, block.Header.Validators)
		s.status.UpdateByCommitted(metadata, block, blockHash, block.Header.Proof)
		s.vmgr.Update(block.Header.Validators)
		status = s.status.ToInner()

		height = next
		stateRoot = resp.StateRoot
		if s.metrics != nil {
			s.metrics.SyncLagHeight.Set(float64(targetHeight - height))
		}
	}

	return nil
}

// nextMetadata carries the ratio/limit fields of the live status
// forward, replacing only the validator set, mirroring the metadata
// the metadata service would otherwise publish for this height.
func nextMetadata(status consensus.CurrentConsensusStatus, validators []types.Validator) types.Metadata {
	return types.Metadata{
		CyclesPrice:    status.CyclesPrice,
		CyclesLimit:    status.CyclesLimit,
		Interval:       status.ConsensusInterval,
		VerifierList:   validators,
		ProposeRatio:   status.ProposeRatio,
		PrevoteRatio:   status.PrevoteRatio,
		PrecommitRatio: status.PrecommitRatio,
		BrakeRatio:     status.BrakeRatio,
		TxNumLimit:     status.TxNumLimit,
		MaxTxSize:      status.MaxTxSize,
	}
}

func mustEncodeHeader(h types.BlockHeader) []byte {
	raw, err := h.EncodeFixed()
	if err != nil {
		panic("sync: block header failed to encode: " + err.Error())
	}
	return raw
}

func hashesOf(txs []types.SignedTransaction) []types.Hash {
	out := make([]types.Hash, len(txs))
	for i, tx := range txs {
		out[i] = tx.TxHash
	}
	return out
}
