package storage_test

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutanet/mutacore/storage"
	"github.com/mutanet/mutacore/types"
)

func testBlock(height uint64) types.Block {
	header := types.BlockHeader{
		ChainID:            types.Keccak256([]byte("chain")),
		Height:             height,
		ExecHeight:         height,
		PrevHash:           types.Keccak256([]byte("prev")),
		Timestamp:          1000 * height,
		OrderRoot:          types.Keccak256([]byte("order")),
		OrderSignedTxsHash: types.Keccak256([]byte("signed-order")),
		StateRoot:          types.Keccak256([]byte("state")),
		Proposer:           types.Address{1, 2, 3},
		Proof: types.Proof{
			Height:    height - 1,
			BlockHash: types.Keccak256([]byte("prev")),
		},
		ValidatorVersion: 1,
	}
	return types.Block{Header: header}
}

func TestBlockRoundTripByHeightAndHash(t *testing.T) {
	s := storage.New(memdb.New())
	block := testBlock(3)
	require.NoError(t, s.PutBlock(block))

	byHeight, err := s.GetBlockByHeight(3)
	require.NoError(t, err)
	assert.Equal(t, block, byHeight)

	raw, err := block.EncodeFixed()
	require.NoError(t, err)
	byHash, err := s.GetBlockByHash(types.Keccak256(raw))
	require.NoError(t, err)
	assert.Equal(t, block, byHash)
}

func TestGetBlockByHeightNotFound(t *testing.T) {
	s := storage.New(memdb.New())
	_, err := s.GetBlockByHeight(99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionRoundTrip(t *testing.T) {
	s := storage.New(memdb.New())
	raw := types.RawTransaction{
		ChainID:     types.Keccak256([]byte("chain")),
		CyclesLimit: 1000,
		Timeout:     10,
		Sender:      types.Address{4, 5, 6},
		Request:     types.TransactionRequest{ServiceName: "asset", Method: "transfer", Payload: "{}"},
	}
	rawBytes, err := raw.EncodeFixed()
	require.NoError(t, err)
	tx := types.SignedTransaction{Raw: raw, TxHash: types.Keccak256(rawBytes)}

	require.NoError(t, s.PutTransactions([]types.SignedTransaction{tx}))
	assert.True(t, s.HasTransaction(tx.TxHash))

	got, err := s.GetTransaction(tx.TxHash)
	require.NoError(t, err)
	assert.Equal(t, tx, got)
}

func TestHasTransactionFalseForUnknownHash(t *testing.T) {
	s := storage.New(memdb.New())
	assert.False(t, s.HasTransaction(types.Keccak256([]byte("never-seen"))))
}

func TestReceiptRoundTrip(t *testing.T) {
	s := storage.New(memdb.New())
	receipt := types.Receipt{
		StateRootAfter: types.Keccak256([]byte("state")),
		BlockHeight:    1,
		TxHash:         types.Keccak256([]byte("tx")),
		CyclesUsed:     500,
		Response:       types.ServiceCallResponse{Service: "asset", Method: "transfer", Ret: "{}"},
	}

	require.NoError(t, s.PutReceipts([]types.Receipt{receipt}))
	got, err := s.GetReceipt(receipt.TxHash)
	require.NoError(t, err)
	assert.Equal(t, receipt, got)
}

func TestLatestProofRoundTrip(t *testing.T) {
	s := storage.New(memdb.New())
	_, err := s.GetLatestProof()
	assert.ErrorIs(t, err, storage.ErrNotFound)

	proof := types.Proof{Height: 10, Round: 1, BlockHash: types.Keccak256([]byte("block-10"))}
	require.NoError(t, s.PutLatestProof(proof))

	got, err := s.GetLatestProof()
	require.NoError(t, err)
	assert.Equal(t, proof, got)
}
