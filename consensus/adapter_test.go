package consensus_test

import (
	"context"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutanet/mutacore/consensus"
	"github.com/mutanet/mutacore/crypto/bls"
	"github.com/mutanet/mutacore/mempool"
	"github.com/mutanet/mutacore/types"
	"github.com/mutanet/mutacore/validators"
)

type fakeStorage struct {
	blocks map[uint64]types.Block
}

func newFakeStorage() *fakeStorage { return &fakeStorage{blocks: map[uint64]types.Block{}} }

func (s *fakeStorage) PutBlock(b types.Block) error         { s.blocks[b.Header.Height] = b; return nil }
func (s *fakeStorage) PutTransactions([]types.SignedTransaction) error { return nil }
func (s *fakeStorage) PutReceipts([]types.Receipt) error     { return nil }
func (s *fakeStorage) PutLatestProof(types.Proof) error      { return nil }
func (s *fakeStorage) GetBlockByHeight(height uint64) (types.Block, error) {
	b, ok := s.blocks[height]
	if !ok {
		return types.Block{}, assert.AnError
	}
	return b, nil
}

type fakeMempool struct {
	mixed   mempool.MixedTxHashes
	flushed []types.Hash
	height  uint64
}

func (m *fakeMempool) Package(uint64, int) mempool.MixedTxHashes { return m.mixed }
func (m *fakeMempool) GetFullTxs(hashes []types.Hash) ([]types.SignedTransaction, error) {
	return nil, nil
}
func (m *fakeMempool) Flush(hashes []types.Hash) { m.flushed = hashes }
func (m *fakeMempool) SetHeight(h uint64)         { m.height = h }

type fakeSender struct {
	gossiped []string
}

func (s *fakeSender) Gossip(_ context.Context, endpoint string, _ []ids.NodeID, _ []byte) error {
	s.gossiped = append(s.gossiped, endpoint)
	return nil
}
func (s *fakeSender) Request(context.Context, string, ids.NodeID, []byte) ([]byte, error) {
	return nil, nil
}

type fakeExecutor struct{}

func (fakeExecutor) Invoke(header types.BlockHeader, tx types.SignedTransaction) types.Receipt {
	return types.Receipt{StateRootAfter: types.Keccak256([]byte("post-state")), BlockHeight: header.Height, TxHash: tx.TxHash, CyclesUsed: 10}
}

func newTestAdapter(t *testing.T, storage *fakeStorage, pool *fakeMempool, sender *fakeSender) *consensus.Adapter {
	t.Helper()
	return newTestAdapterWithStatus(t, storage, pool, sender, consensus.CurrentConsensusStatus{CyclesLimit: 1_000_000, TxNumLimit: 10})
}

func newTestAdapterWithStatus(t *testing.T, storage *fakeStorage, pool *fakeMempool, sender *fakeSender, status consensus.CurrentConsensusStatus) *consensus.Adapter {
	t.Helper()
	executor := consensus.NewBlockExecutor(fakeExecutor{})
	agent := consensus.NewStatusAgent(status)
	vmgr := validators.New()
	return consensus.NewAdapter(storage, pool, executor, agent, vmgr, sender, nil, nil)
}

func TestCreateBlockUsesPackagedMempoolAndOrderRoot(t *testing.T) {
	storage := newFakeStorage()
	storage.blocks[4] = types.Block{Header: types.BlockHeader{Height: 4, Timestamp: 1000}}
	hashes := []types.Hash{types.Keccak256([]byte("tx-1"))}
	pool := &fakeMempool{mixed: mempool.MixedTxHashes{OrderTxHashes: hashes}}
	a := newTestAdapter(t, storage, pool, &fakeSender{})

	block, err := a.CreateBlock(5, 4, types.Keccak256([]byte("prev")), types.Proof{}, nil, types.Address{1}, types.Keccak256([]byte("chain")))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), block.Header.Height)
	assert.Equal(t, types.MerkleFromHashes(hashes), block.Header.OrderRoot)
	assert.Equal(t, hashes, block.OrderedTxHashes)
	assert.Greater(t, block.Header.Timestamp, prior(storage, 4).Timestamp)
}

func prior(s *fakeStorage, h uint64) types.BlockHeader {
	return s.blocks[h].Header
}

func TestCheckBlockRejectsWrongChainID(t *testing.T) {
	storage := newFakeStorage()
	a := newTestAdapter(t, storage, &fakeMempool{}, &fakeSender{})
	block := types.Block{Header: types.BlockHeader{ChainID: types.Keccak256([]byte("other")), Height: 1}}

	err := a.CheckBlock(block, types.Keccak256([]byte("chain")), nil, nil)
	require.Error(t, err)
	var failErr *consensus.FailError
	require.ErrorAs(t, err, &failErr)
	assert.Equal(t, consensus.ReasonBadHeader, failErr.Reason)
}

func TestCheckBlockRejectsNonValidatorProposer(t *testing.T) {
	storage := newFakeStorage()
	storage.blocks[0] = types.Block{Header: types.BlockHeader{Height: 0, Timestamp: 0}}
	chainID := types.Keccak256([]byte("chain"))
	a := newTestAdapter(t, storage, &fakeMempool{}, &fakeSender{})
	block := types.Block{Header: types.BlockHeader{
		ChainID:   chainID,
		Height:    1,
		Timestamp: 10,
		Proposer:  types.Address{9, 9},
	}}

	err := a.CheckBlock(block, chainID, []types.Validator{{PubKey: []byte{0x02, 0x01}}}, nil)
	require.Error(t, err)
	var failErr *consensus.FailError
	require.ErrorAs(t, err, &failErr)
	assert.Equal(t, consensus.ReasonBadValidatorSet, failErr.Reason)
}

func blsKeyPair(t *testing.T, seed byte) (*bls.PrivateKey, *bls.PublicKey) {
	t.Helper()
	var ikm [32]byte
	ikm[0] = seed
	sk, err := bls.GenerateKey(ikm)
	require.NoError(t, err)
	return sk, sk.PublicKey()
}

func TestCheckBlockAcceptsValidProofUnderQuorum(t *testing.T) {
	sk1, pk1 := blsKeyPair(t, 1)
	sk2, pk2 := blsKeyPair(t, 2)
	sk3, pk3 := blsKeyPair(t, 3)

	chainID := types.Keccak256([]byte("chain"))
	storage := newFakeStorage()
	storage.blocks[0] = types.Block{Header: types.BlockHeader{Height: 0, Timestamp: 0}}
	a := newTestAdapter(t, storage, &fakeMempool{}, &fakeSender{})

	proof := types.Proof{Height: 0, Round: 0, BlockHash: types.Keccak256([]byte("block-0"))}
	msg := consensus.ProofMessage(proof)
	sig1 := sk1.Sign(msg)
	sig2 := sk2.Sign(msg)
	sig3 := sk3.Sign(msg)
	agg, err := bls.Aggregate([]*bls.Signature{sig1, sig2, sig3})
	require.NoError(t, err)
	proof.AggregatedSignature = agg.Bytes()
	proof.ParticipantBitmap = []byte{0x07} // all 3 validators signed

	validatorSet := []types.Validator{
		{PubKey: []byte{0x02, 0x01}, BLSPubKey: pk1.Bytes(), VoteWeight: 1},
		{PubKey: []byte{0x02, 0x02}, BLSPubKey: pk2.Bytes(), VoteWeight: 1},
		{PubKey: []byte{0x02, 0x03}, BLSPubKey: pk3.Bytes(), VoteWeight: 1},
	}

	block := types.Block{Header: types.BlockHeader{
		ChainID:   chainID,
		Height:    1,
		Timestamp: 10,
		Proposer:  types.AddressFromPubKey(validatorSet[0].PubKey),
		Proof:     proof,
	}}

	err = a.CheckBlock(block, chainID, validatorSet, nil)
	require.NoError(t, err)
}

func TestCheckBlockRejectsProofBelowQuorum(t *testing.T) {
	sk1, pk1 := blsKeyPair(t, 1)
	_, pk2 := blsKeyPair(t, 2)
	_, pk3 := blsKeyPair(t, 3)

	chainID := types.Keccak256([]byte("chain"))
	storage := newFakeStorage()
	storage.blocks[0] = types.Block{Header: types.BlockHeader{Height: 0, Timestamp: 0}}
	a := newTestAdapter(t, storage, &fakeMempool{}, &fakeSender{})

	proof := types.Proof{Height: 0, Round: 0, BlockHash: types.Keccak256([]byte("block-0"))}
	msg := consensus.ProofMessage(proof)
	sig1 := sk1.Sign(msg)
	agg, err := bls.Aggregate([]*bls.Signature{sig1})
	require.NoError(t, err)
	proof.AggregatedSignature = agg.Bytes()
	proof.ParticipantBitmap = []byte{0x01} // only validator 0 of 3 signed

	validatorSet := []types.Validator{
		{PubKey: []byte{0x02, 0x01}, BLSPubKey: pk1.Bytes(), VoteWeight: 1},
		{PubKey: []byte{0x02, 0x02}, BLSPubKey: pk2.Bytes(), VoteWeight: 1},
		{PubKey: []byte{0x02, 0x03}, BLSPubKey: pk3.Bytes(), VoteWeight: 1},
	}

	block := types.Block{Header: types.BlockHeader{
		ChainID:   chainID,
		Height:    1,
		Timestamp: 10,
		Proposer:  types.AddressFromPubKey(validatorSet[0].PubKey),
		Proof:     proof,
	}}

	err = a.CheckBlock(block, chainID, validatorSet, nil)
	require.Error(t, err)
	var failErr *consensus.FailError
	require.ErrorAs(t, err, &failErr)
	assert.Equal(t, consensus.ReasonBadProof, failErr.Reason)
}

func TestCheckBlockRejectsMismatchedExecResultRoots(t *testing.T) {
	chainID := types.Keccak256([]byte("chain"))
	storage := newFakeStorage()
	storage.blocks[0] = types.Block{Header: types.BlockHeader{Height: 0, Timestamp: 0}}
	a := newTestAdapter(t, storage, &fakeMempool{}, &fakeSender{})

	validatorSet := []types.Validator{{PubKey: []byte{0x02, 0x01}}}

	block := types.Block{Header: types.BlockHeader{
		ChainID:     chainID,
		Height:      1,
		Timestamp:   10,
		Proposer:    types.AddressFromPubKey(validatorSet[0].PubKey),
		ExecHeight:  0,
		ConfirmRoot: []types.MerkleRoot{types.Keccak256([]byte("claimed-confirm"))},
		StateRoot:   types.Keccak256([]byte("claimed-state")),
		ReceiptRoot: []types.MerkleRoot{types.Keccak256([]byte("claimed-receipt"))},
		CyclesUsed:  []uint64{5},
	}}

	execResults := []consensus.ExecResult{{
		Height:      1,
		ConfirmRoot: types.Keccak256([]byte("actual-confirm")),
		StateRoot:   types.Keccak256([]byte("claimed-state")),
		ReceiptRoot: types.Keccak256([]byte("claimed-receipt")),
		CyclesUsed:  5,
	}}

	err := a.CheckBlock(block, chainID, validatorSet, execResults)
	require.Error(t, err)
	var failErr *consensus.FailError
	require.ErrorAs(t, err, &failErr)
	assert.Equal(t, consensus.ReasonMissingExecResult, failErr.Reason)
}

func TestCheckBlockRejectsExecResultCountMismatch(t *testing.T) {
	chainID := types.Keccak256([]byte("chain"))
	storage := newFakeStorage()
	storage.blocks[0] = types.Block{Header: types.BlockHeader{Height: 0, Timestamp: 0}}
	a := newTestAdapter(t, storage, &fakeMempool{}, &fakeSender{})

	validatorSet := []types.Validator{{PubKey: []byte{0x02, 0x01}}}

	block := types.Block{Header: types.BlockHeader{
		ChainID:     chainID,
		Height:      1,
		Timestamp:   10,
		Proposer:    types.AddressFromPubKey(validatorSet[0].PubKey),
		ExecHeight:  0,
		ConfirmRoot: []types.MerkleRoot{types.Keccak256([]byte("claimed-confirm"))},
		StateRoot:   types.Keccak256([]byte("claimed-state")),
		ReceiptRoot: []types.MerkleRoot{types.Keccak256([]byte("claimed-receipt"))},
		CyclesUsed:  []uint64{5},
	}}

	err := a.CheckBlock(block, chainID, validatorSet, nil)
	require.Error(t, err)
	var failErr *consensus.FailError
	require.ErrorAs(t, err, &failErr)
	assert.Equal(t, consensus.ReasonMissingExecResult, failErr.Reason)
}

func TestCommitPersistsExecutesAndFlushesMempool(t *testing.T) {
	storage := newFakeStorage()
	storage.blocks[4] = types.Block{Header: types.BlockHeader{Height: 4}}
	pool := &fakeMempool{}
	sender := &fakeSender{}
	a := newTestAdapterWithStatus(t, storage, pool, sender, consensus.CurrentConsensusStatus{LatestCommittedHeight: 4, ExecHeight: 4})

	block := types.Block{Header: types.BlockHeader{Height: 5}, OrderedTxHashes: []types.Hash{types.Keccak256([]byte("tx-1"))}}
	txs := []types.SignedTransaction{{TxHash: types.Keccak256([]byte("tx-1"))}}

	next, err := a.Commit(block, txs, types.Proof{Height: 5}, types.Metadata{CyclesLimit: 42})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), next.Height)
	assert.Equal(t, block.OrderedTxHashes, pool.flushed)
	assert.Equal(t, uint64(5), pool.height)
	assert.Contains(t, storage.blocks, uint64(5))
	assert.Contains(t, sender.gossiped, "/gossip/consensus/broadcast_height")
}
