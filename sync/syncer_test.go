package sync_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutanet/mutacore/consensus"
	"github.com/mutanet/mutacore/crypto/bls"
	mutasync "github.com/mutanet/mutacore/sync"
	"github.com/mutanet/mutacore/types"
)

type fakeStorage struct {
	blocks map[uint64]types.Block
}

func newFakeStorage() *fakeStorage { return &fakeStorage{blocks: map[uint64]types.Block{}} }

func (s *fakeStorage) PutBlock(b types.Block) error                    { s.blocks[b.Header.Height] = b; return nil }
func (s *fakeStorage) PutTransactions([]types.SignedTransaction) error { return nil }
func (s *fakeStorage) PutReceipts([]types.Receipt) error               { return nil }
func (s *fakeStorage) PutLatestProof(types.Proof) error                { return nil }
func (s *fakeStorage) GetBlockByHeight(height uint64) (types.Block, error) {
	b, ok := s.blocks[height]
	if !ok {
		return types.Block{}, assert.AnError
	}
	return b, nil
}

type fakeSource struct {
	blocks map[uint64]types.Block
	txs    map[types.Hash]types.SignedTransaction
	lostAt uint64
}

func (s *fakeSource) PullBlock(_ context.Context, height uint64) (types.Block, error) {
	b, ok := s.blocks[height]
	if !ok {
		return types.Block{}, assert.AnError
	}
	return b, nil
}

func (s *fakeSource) PullTxs(_ context.Context, hashes []types.Hash) ([]types.SignedTransaction, error) {
	out := make([]types.SignedTransaction, 0, len(hashes))
	for _, h := range hashes {
		tx, ok := s.txs[h]
		if !ok {
			return nil, assert.AnError
		}
		out = append(out, tx)
	}
	return out, nil
}

type fakeExecutor struct{}

func (fakeExecutor) Invoke(header types.BlockHeader, tx types.SignedTransaction) types.Receipt {
	return types.Receipt{StateRootAfter: types.Keccak256([]byte("post-state")), BlockHeight: header.Height, TxHash: tx.TxHash, CyclesUsed: 7}
}

type fakeVmgr struct {
	validators []types.Validator
	updated    [][]types.Validator
}

func (v *fakeVmgr) GetValidators(uint64) []types.Validator { return v.validators }
func (v *fakeVmgr) Update(vs []types.Validator)            { v.updated = append(v.updated, vs); v.validators = vs }

func genesisValidators(t *testing.T) ([]types.Validator, []*bls.PrivateKey) {
	t.Helper()
	var keys []*bls.PrivateKey
	var validators []types.Validator
	for i := byte(1); i <= 3; i++ {
		var ikm [32]byte
		ikm[0] = i
		sk, err := bls.GenerateKey(ikm)
		require.NoError(t, err)
		keys = append(keys, sk)
		validators = append(validators, types.Validator{
			PubKey:     []byte{0x02, i},
			BLSPubKey:  sk.PublicKey().Bytes(),
			VoteWeight: 1,
		})
	}
	return validators, keys
}

func signProof(t *testing.T, proof types.Proof, keys []*bls.PrivateKey, signerIdx ...int) types.Proof {
	t.Helper()
	msg := consensus.ProofMessage(proof)
	var sigs []*bls.Signature
	bitmap := byte(0)
	for _, i := range signerIdx {
		sigs = append(sigs, keys[i].Sign(msg))
		bitmap |= 1 << uint(i)
	}
	agg, err := bls.Aggregate(sigs)
	require.NoError(t, err)
	proof.AggregatedSignature = agg.Bytes()
	proof.ParticipantBitmap = []byte{bitmap}
	return proof
}

func newTestSyncer(t *testing.T, storage *fakeStorage, source *fakeSource, vmgr *fakeVmgr, status consensus.CurrentConsensusStatus, mu *sync.Mutex) *mutasync.Syncer {
	t.Helper()
	executor := consensus.NewBlockExecutor(fakeExecutor{})
	agent := consensus.NewStatusAgent(status)
	return mutasync.New(storage, source, executor, agent, vmgr, mu, nil, nil)
}

func TestRunCatchesUpSingleBlock(t *testing.T) {
	validators, keys := genesisValidators(t)

	genesis := types.Block{Header: types.BlockHeader{Height: 0, Timestamp: 0}}
	genesisHash := types.Keccak256(mustEncode(t, genesis.Header))

	tx := types.SignedTransaction{TxHash: types.Keccak256([]byte("tx-1"))}
	orderRoot := types.MerkleFromHashes([]types.Hash{tx.TxHash})

	header := types.BlockHeader{
		Height:     1,
		PrevHash:   genesisHash,
		Timestamp:  10,
		OrderRoot:  orderRoot,
		StateRoot:  types.Keccak256([]byte("post-state")),
		Validators: validators,
	}
	proof := signProof(t, types.Proof{Height: 0}, keys, 0, 1, 2)
	header.Proof = proof
	block := types.Block{Header: header, OrderedTxHashes: []types.Hash{tx.TxHash}}

	storage := newFakeStorage()
	storage.blocks[0] = genesis
	source := &fakeSource{
		blocks: map[uint64]types.Block{1: block},
		txs:    map[types.Hash]types.SignedTransaction{tx.TxHash: tx},
	}
	vmgr := &fakeVmgr{validators: validators}

	var mu sync.Mutex
	syncer := newTestSyncer(t, storage, source, vmgr, consensus.CurrentConsensusStatus{}, &mu)

	err := syncer.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, storage.blocks, uint64(1))
	assert.Len(t, vmgr.updated, 1)
}

func TestRunAbandonsWhenCommitMutexBusy(t *testing.T) {
	storage := newFakeStorage()
	storage.blocks[0] = types.Block{}
	source := &fakeSource{blocks: map[uint64]types.Block{}, txs: map[types.Hash]types.SignedTransaction{}}
	vmgr := &fakeVmgr{}

	var mu sync.Mutex
	mu.Lock()
	syncer := newTestSyncer(t, storage, source, vmgr, consensus.CurrentConsensusStatus{}, &mu)

	err := syncer.Run(context.Background(), 1)
	assert.ErrorIs(t, err, mutasync.ErrAbandoned)
}

func TestRunReportsBlockHashMismatch(t *testing.T) {
	genesis := types.Block{Header: types.BlockHeader{Height: 0}}
	storage := newFakeStorage()
	storage.blocks[0] = genesis

	bad := types.Block{Header: types.BlockHeader{Height: 1, PrevHash: types.Keccak256([]byte("wrong"))}}
	source := &fakeSource{blocks: map[uint64]types.Block{1: bad}, txs: map[types.Hash]types.SignedTransaction{}}
	vmgr := &fakeVmgr{}

	var mu sync.Mutex
	syncer := newTestSyncer(t, storage, source, vmgr, consensus.CurrentConsensusStatus{}, &mu)

	err := syncer.Run(context.Background(), 1)
	require.Error(t, err)
	var failErr *mutasync.FailError
	require.ErrorAs(t, err, &failErr)
	assert.Equal(t, mutasync.ReasonBlockHashMismatch, failErr.Reason)
}

func TestRunReportsDivergenceOnStateRootMismatch(t *testing.T) {
	validators, keys := genesisValidators(t)
	genesis := types.Block{Header: types.BlockHeader{Height: 0}}
	genesisHash := types.Keccak256(mustEncode(t, genesis.Header))

	tx := types.SignedTransaction{TxHash: types.Keccak256([]byte("tx-1"))}
	orderRoot := types.MerkleFromHashes([]types.Hash{tx.TxHash})

	header := types.BlockHeader{
		Height:     1,
		PrevHash:   genesisHash,
		OrderRoot:  orderRoot,
		StateRoot:  types.Keccak256([]byte("wrong-state")),
		Validators: validators,
	}
	header.Proof = signProof(t, types.Proof{Height: 0}, keys, 0, 1, 2)
	block := types.Block{Header: header, OrderedTxHashes: []types.Hash{tx.TxHash}}

	storage := newFakeStorage()
	storage.blocks[0] = genesis
	source := &fakeSource{
		blocks: map[uint64]types.Block{1: block},
		txs:    map[types.Hash]types.SignedTransaction{tx.TxHash: tx},
	}
	vmgr := &fakeVmgr{validators: validators}

	var mu sync.Mutex
	syncer := newTestSyncer(t, storage, source, vmgr, consensus.CurrentConsensusStatus{}, &mu)

	err := syncer.Run(context.Background(), 1)
	require.Error(t, err)
	var failErr *mutasync.FailError
	require.ErrorAs(t, err, &failErr)
	assert.Equal(t, mutasync.ReasonDivergence, failErr.Reason)
}

func TestRunReportsMsgsLostWhenTxsUnavailable(t *testing.T) {
	validators, keys := genesisValidators(t)
	genesis := types.Block{Header: types.BlockHeader{Height: 0}}
	genesisHash := types.Keccak256(mustEncode(t, genesis.Header))

	missingHash := types.Keccak256([]byte("missing-tx"))
	header := types.BlockHeader{
		Height:     1,
		PrevHash:   genesisHash,
		Validators: validators,
	}
	header.Proof = signProof(t, types.Proof{Height: 0}, keys, 0, 1, 2)
	block := types.Block{Header: header, OrderedTxHashes: []types.Hash{missingHash}}

	storage := newFakeStorage()
	storage.blocks[0] = genesis
	source := &fakeSource{
		blocks: map[uint64]types.Block{1: block},
		txs:    map[types.Hash]types.SignedTransaction{},
	}
	vmgr := &fakeVmgr{validators: validators}

	var mu sync.Mutex
	syncer := newTestSyncer(t, storage, source, vmgr, consensus.CurrentConsensusStatus{}, &mu)

	err := syncer.Run(context.Background(), 1)
	require.Error(t, err)
	var lostErr *mutasync.MsgsLostError
	require.ErrorAs(t, err, &lostErr)
	assert.Equal(t, uint64(1), lostErr.Height)
}

func mustEncode(t *testing.T, h types.BlockHeader) []byte {
	t.Helper()
	raw, err := h.EncodeFixed()
	require.NoError(t, err)
	return raw
}
