package consensus

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"go.uber.org/zap"

	"github.com/mutanet/mutacore/crypto/bls"
	"github.com/mutanet/mutacore/log"
	"github.com/mutanet/mutacore/mempool"
	"github.com/mutanet/mutacore/metrics"
	"github.com/mutanet/mutacore/network"
	"github.com/mutanet/mutacore/storage"
	"github.com/mutanet/mutacore/types"
	"github.com/mutanet/mutacore/validators"
)

// Mempool is the subset of *mempool.Pool the adapter drives.
type Mempool interface {
	Package(cyclesLimit uint64, txNumLimit int) mempool.MixedTxHashes
	GetFullTxs(hashes []types.Hash) ([]types.SignedTransaction, error)
	Flush(hashes []types.Hash)
	SetHeight(height uint64)
}

// Storage is the subset of *storage.Storage the adapter persists
// committed blocks through.
type Storage interface {
	PutBlock(block types.Block) error
	PutTransactions(txs []types.SignedTransaction) error
	PutReceipts(receipts []types.Receipt) error
	PutLatestProof(proof types.Proof) error
	GetBlockByHeight(height uint64) (types.Block, error)
}

// ExecResult is one entry of create_block's recent_exec_results
// parameter, covering heights (exec_height, height].
type ExecResult struct {
	Height      uint64
	ConfirmRoot types.MerkleRoot
	StateRoot   types.MerkleRoot
	ReceiptRoot types.MerkleRoot
	CyclesUsed  uint64
}

// NextRoundStatus is handed back to the BFT engine after a commit so
// it can set up the next round, per spec.md §4.D commit step 5.
type NextRoundStatus struct {
	Height            uint64
	Validators        []types.Validator
	ConsensusInterval uint64
}

// Adapter implements the contract spec.md §4.D requires of an
// Overlord-like BFT state machine: create_block, check_block, commit,
// broadcast, transmit, and authority-list queries. It generalizes the
// teacher's bft_wrapper.go Engine (a thin wrapper around an external
// BFT library) by keeping the external engine entirely out of this
// type — the engine calls these methods, not the other way around —
// and its Comm-style outbound path (teacher's engine/bft/comm.go) onto
// network.AppSender across the ten endpoints of spec.md §6.
type Adapter struct {
	storage  Storage
	mempool  Mempool
	executor *BlockExecutor
	status   *StatusAgent
	vmgr     *validators.Snapshot
	sender   network.AppSender
	logger   log.Logger
	metrics  *metrics.NodeMetrics

	// CommitMu is shared with sync.Syncer: whichever side holds it is
	// the sole writer of committed chain state, per spec.md §4.E step 1
	// "acquire the commit mutex shared with the adapter; abandon if
	// busy."
	CommitMu sync.Mutex

	// wal records in-flight BFT votes so a restart can resume mid-round
	// (spec.md §6); nil is valid and simply disables WAL recording,
	// e.g. for tests that never exercise restart recovery.
	wal *storage.WAL

	peers []ids.NodeID
}

// SetWAL attaches a vote-recovery log to the adapter; pass nil to
// disable WAL recording.
func (a *Adapter) SetWAL(w *storage.WAL) {
	a.wal = w
}

// RecordVote appends an in-flight BFT message (vote, QC, or choke) to
// the WAL before it is acted on, so a crash mid-round can be replayed
// on restart. Nothing in this module calls it: the stub handlers
// cmd/mutanode registers on network.Router drop every blob without
// recording it.
func (a *Adapter) RecordVote(height, round uint64, blob []byte) error {
	if a.wal == nil {
		return nil
	}
	return a.wal.Append(storage.Record{Height: height, Round: round, Bytes: blob})
}

// NewAdapter wires an Adapter over its storage/mempool/executor/status
// collaborators plus the outbound network sender.
func NewAdapter(storage Storage, pool Mempool, executor *BlockExecutor, status *StatusAgent, vmgr *validators.Snapshot, sender network.AppSender, logger log.Logger, m *metrics.NodeMetrics) *Adapter {
	return &Adapter{
		storage:  storage,
		mempool:  pool,
		executor: executor,
		status:   status,
		vmgr:     vmgr,
		sender:   sender,
		logger:   logger,
		metrics:  m,
	}
}

// SetPeers updates the consensus-tagged peer set that Broadcast and
// the post-commit height broadcast gossip to. The cmd/mutanode
// composition root does not call it, so that node's peer set stays
// empty.
func (a *Adapter) SetPeers(peers []ids.NodeID) {
	a.peers = append([]ids.NodeID(nil), peers...)
}

// CreateBlock implements spec.md §4.D create_block steps 1-7.
func (a *Adapter) CreateBlock(height, execHeight uint64, preHash types.Hash, preProof types.Proof, recentExecResults []ExecResult, proposer types.Address, chainID types.Hash) (types.Block, error) {
	status := a.status.ToInner()

	// Step 1: timestamp = max(wall clock, prior header's timestamp+1).
	prior, err := a.storage.GetBlockByHeight(height - 1)
	if err != nil {
		return types.Block{}, err
	}
	timestamp := uint64(time.Now().UnixMilli())
	if prior.Header.Timestamp+1 > timestamp {
		timestamp = prior.Header.Timestamp + 1
	}

	// Step 2: package the mempool.
	mixed := a.mempool.Package(status.CyclesLimit, int(status.TxNumLimit))

	// Step 3: order root over order_tx_hashes.
	orderRoot := types.MerkleFromHashes(mixed.OrderTxHashes)

	// Steps 4-5: fold recent_exec_results (sorted ascending by height
	// by contract) into the header's list-of-roots fields and derive
	// state_root from the last one, falling back to the locally
	// committed latest state root when there is none yet to report.
	confirmRoots := make([]types.MerkleRoot, len(recentExecResults))
	stateRoots := make([]types.MerkleRoot, len(recentExecResults))
	receiptRoots := make([]types.MerkleRoot, len(recentExecResults))
	cyclesUsed := make([]uint64, len(recentExecResults))
	stateRoot := status.LatestCommittedStateRoot
	for i, r := range recentExecResults {
		confirmRoots[i] = r.ConfirmRoot
		stateRoots[i] = r.StateRoot
		receiptRoots[i] = r.ReceiptRoot
		cyclesUsed[i] = r.CyclesUsed
		stateRoot = r.StateRoot
	}

	header := types.BlockHeader{
		ChainID:            chainID,
		Height:             height,
		ExecHeight:         execHeight,
		PrevHash:           preHash,
		Timestamp:          timestamp,
		OrderRoot:          orderRoot,
		OrderSignedTxsHash: types.FromEmpty(),
		ConfirmRoot:        confirmRoots,
		StateRoot:          stateRoot,
		ReceiptRoot:        receiptRoots,
		CyclesUsed:         cyclesUsed,
		Proposer:           proposer,
		Proof:              preProof, // step 6: verbatim
		ValidatorVersion:   status.ConsensusInterval,
		Validators:         status.Validators, // step 7
	}

	return types.Block{Header: header, OrderedTxHashes: mixed.OrderTxHashes}, nil
}

// CheckBlock implements spec.md §4.D check_block's verification list
// against a peer-proposed block. execResults covers heights
// (exec_height, height] the same way CreateBlock's recentExecResults
// does, sorted ascending by height; it lets a checking peer recompute
// the roots CreateBlock would have derived and compare them against
// what the proposer actually claimed.
func (a *Adapter) CheckBlock(block types.Block, chainID types.Hash, priorValidators []types.Validator, execResults []ExecResult) error {
	status := a.status.ToInner()

	if block.Header.ChainID != chainID {
		return newFail(ReasonBadHeader, block.Header.Height)
	}
	if block.Header.Height != status.LatestCommittedHeight+1 {
		return newFail(ReasonBadHeader, block.Header.Height)
	}
	if block.Header.PrevHash != status.CurrentHash {
		return newFail(ReasonBadHeader, block.Header.Height)
	}
	if !a.isValidator(block.Header.Proposer, priorValidators) {
		return newFail(ReasonBadValidatorSet, block.Header.Height)
	}
	if block.Header.ValidatorVersion != status.ConsensusInterval {
		return newFail(ReasonBadValidatorSet, block.Header.Height)
	}
	prior, err := a.storage.GetBlockByHeight(block.Header.Height - 1)
	if err != nil {
		return newFail(ReasonBadHeader, block.Header.Height)
	}
	if block.Header.Timestamp <= prior.Header.Timestamp {
		return newFail(ReasonBadHeader, block.Header.Height)
	}
	if block.Header.ExecHeight > block.Header.Height {
		return newFail(ReasonBadHeader, block.Header.Height)
	}
	if err := a.checkExecResults(block.Header, execResults, status); err != nil {
		return err
	}
	if err := a.verifyProof(block.Header.Proof, priorValidators); err != nil {
		return err
	}
	return nil
}

// checkExecResults verifies that header's ConfirmRoot/StateRoot/
// ReceiptRoot/CyclesUsed lists are exactly what CreateBlock steps 4-5
// would have derived from execResults, folding each entry in ascending
// height order and falling back to the locally committed latest state
// root when execResults is empty. Any missing entry or mismatched root
// is a ConsensusFail MissingExecResult (spec.md §7), the sub-kind
// reserved for this exact check.
func (a *Adapter) checkExecResults(header types.BlockHeader, execResults []ExecResult, status CurrentConsensusStatus) error {
	if len(execResults) != len(header.ConfirmRoot) ||
		len(execResults) != len(header.ReceiptRoot) ||
		len(execResults) != len(header.CyclesUsed) {
		return newFail(ReasonMissingExecResult, header.Height)
	}

	stateRoot := status.LatestCommittedStateRoot
	for i, r := range execResults {
		if r.ConfirmRoot != header.ConfirmRoot[i] ||
			r.ReceiptRoot != header.ReceiptRoot[i] ||
			r.CyclesUsed != header.CyclesUsed[i] {
			return newFail(ReasonMissingExecResult, header.Height)
		}
		stateRoot = r.StateRoot
	}
	if stateRoot != header.StateRoot {
		return newFail(ReasonMissingExecResult, header.Height)
	}
	return nil
}

// isValidator reports whether addr is among validators' derived
// addresses.
func (a *Adapter) isValidator(addr types.Address, validatorSet []types.Validator) bool {
	for _, v := range validatorSet {
		if types.AddressFromPubKey(v.PubKey) == addr {
			return true
		}
	}
	return false
}

// bitSet reports whether bit i is set in bitmap, the participation
// bitmap a Proof's AggregatedSignature is keyed against (validator
// index order, matching the order validators were supplied in).
func bitSet(bitmap []byte, i int) bool {
	byteIdx, bitIdx := i/8, uint(i%8)
	if byteIdx >= len(bitmap) {
		return false
	}
	return bitmap[byteIdx]&(1<<bitIdx) != 0
}

// ProofMessage is the exact byte sequence a Proof's
// AggregatedSignature signs over: (height, round, block_hash).
// Exported so sync.Syncer's header-chain verification signs and checks
// identically to CheckBlock without duplicating the layout.
func ProofMessage(proof types.Proof) []byte {
	msg := make([]byte, 0, 16+types.HashLength)
	msg = appendUint64(msg, proof.Height)
	msg = appendUint64(msg, proof.Round)
	msg = append(msg, proof.BlockHash[:]...)
	return msg
}

func appendUint64(b []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		b = append(b, byte(v>>(8*uint(i))))
	}
	return b
}

// VerifyProof checks proof's aggregated signature against the
// participating subset of validatorSet (selected via
// ParticipantBitmap) and that the participating vote weight clears a
// >2/3 quorum of validatorSet's total vote weight. Exported so
// sync.Syncer can run the identical check against the prior-block
// validator set while replaying a peer's header chain.
func VerifyProof(proof types.Proof, validatorSet []types.Validator) error {
	var pubkeys []*bls.PublicKey
	var participantWeight, totalWeight uint64
	for i, v := range validatorSet {
		totalWeight += uint64(v.VoteWeight)
		if !bitSet(proof.ParticipantBitmap, i) {
			continue
		}
		pk, err := bls.PublicKeyFromBytes(v.BLSPubKey)
		if err != nil {
			return newFail(ReasonBadProof, proof.Height)
		}
		pubkeys = append(pubkeys, pk)
		participantWeight += uint64(v.VoteWeight)
	}
	if len(pubkeys) == 0 {
		return newFail(ReasonBadProof, proof.Height)
	}
	if participantWeight*3 <= totalWeight*2 {
		return newFail(ReasonBadProof, proof.Height)
	}
	sig, err := bls.SignatureFromBytes(proof.AggregatedSignature)
	if err != nil {
		return newFail(ReasonBadProof, proof.Height)
	}
	if !bls.VerifyAggregate(ProofMessage(proof), pubkeys, sig) {
		return newFail(ReasonBadProof, proof.Height)
	}
	return nil
}

// verifyProof is CheckBlock's call site for VerifyProof.
func (a *Adapter) verifyProof(proof types.Proof, validatorSet []types.Validator) error {
	return VerifyProof(proof, validatorSet)
}

// Commit implements spec.md §4.D commit(height, full_block_bytes,
// proof)'s atomic sequence. CommitMu is held for its whole duration so
// a concurrent sync replay never races a live commit.
func (a *Adapter) Commit(block types.Block, txs []types.SignedTransaction, proof types.Proof, metadata types.Metadata) (NextRoundStatus, error) {
	a.CommitMu.Lock()
	defer a.CommitMu.Unlock()

	// Step 1+2: persist signed txs and the block itself.
	if err := a.storage.PutTransactions(txs); err != nil {
		panic("consensus: commit failed to persist txs: " + err.Error())
	}
	if err := a.storage.PutBlock(block); err != nil {
		panic("consensus: commit failed to persist block: " + err.Error())
	}

	// Step 3: execute.
	status := a.status.ToInner()
	resp := a.executor.Execute(block.Header, txs, status.LatestCommittedStateRoot)
	if err := a.storage.PutReceipts(resp.Receipts); err != nil {
		panic("consensus: commit failed to persist receipts: " + err.Error())
	}
	if err := a.storage.PutLatestProof(proof); err != nil {
		panic("consensus: commit failed to persist proof: " + err.Error())
	}

	blockHash := types.Keccak256(mustEncode(block.Header))

	// Step 4: update status, flush mempool, broadcast height.
	a.status.UpdateByExecuted(ExecutedInfo{
		ExecHeight:  block.Header.Height,
		CyclesUsed:  resp.CyclesUsed,
		StateRoot:   resp.StateRoot,
		ReceiptRoot: resp.ReceiptRoot,
		ConfirmRoot: block.Header.OrderRoot,
	})
	a.status.UpdateByCommitted(metadata, block, blockHash, proof)
	a.vmgr.Update(metadata.VerifierList)
	a.mempool.Flush(block.OrderedTxHashes)
	a.mempool.SetHeight(block.Header.Height)

	if a.wal != nil {
		if err := a.wal.Truncate(block.Header.Height); err != nil && a.logger != nil {
			a.logger.Warn("consensus: wal truncate failed", zap.Error(err))
		}
	}

	a.broadcastHeight(context.Background(), block.Header.Height)
	if a.metrics != nil {
		a.metrics.BlocksCommitted.Inc()
		a.metrics.CyclesUsed.Add(float64(resp.CyclesUsed))
	}

	// Step 5: next-round status.
	next := a.status.ToInner()
	return NextRoundStatus{
		Height:            next.LatestCommittedHeight,
		Validators:        next.Validators,
		ConsensusInterval: next.ConsensusInterval,
	}, nil
}

func mustEncode(h types.BlockHeader) []byte {
	raw, err := h.EncodeFixed()
	if err != nil {
		panic("consensus: block header failed to encode: " + err.Error())
	}
	return raw
}

// broadcastHeight gossips the newly committed height to every
// consensus peer, per spec.md §6's broadcast_height endpoint; emitted
// only after commit completes (spec.md §5 ordering guarantee).
func (a *Adapter) broadcastHeight(ctx context.Context, height uint64) {
	blob := appendUint64(nil, height)
	if err := a.sender.Gossip(ctx, network.EndpointBroadcastHeight, a.peers, blob); err != nil && a.logger != nil {
		a.logger.Warn("consensus: broadcast_height gossip failed", zap.Error(err))
	}
}

// Broadcast gossips an arbitrary consensus-endpoint blob (proposal,
// vote, QC, or choke) to every known peer, generalizing teacher
// engine/bft/comm.go's Comm.SendMessage.
func (a *Adapter) Broadcast(ctx context.Context, endpoint string, blob []byte) error {
	return a.sender.Gossip(ctx, endpoint, a.peers, blob)
}

// Transmit sends a point-to-point blob to a single peer.
func (a *Adapter) Transmit(ctx context.Context, endpoint string, peer ids.NodeID, blob []byte) ([]byte, error) {
	return a.sender.Request(ctx, endpoint, peer, blob)
}

// Validators answers the authority-list query spec.md §4.D lists
// among the adapter's responsibilities.
func (a *Adapter) Validators(height uint64) []types.Validator {
	return a.vmgr.GetValidators(height)
}
