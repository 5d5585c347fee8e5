package builtin_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutanet/mutacore/crypto/secp256k1"
	"github.com/mutanet/mutacore/service"
	"github.com/mutanet/mutacore/service/builtin"
	"github.com/mutanet/mutacore/state"
	"github.com/mutanet/mutacore/types"
)

func newDispatcher(t *testing.T, svcs ...*service.Service) *service.Dispatcher {
	t.Helper()
	store := state.NewStore(state.NewMemNodeStore(), types.FromEmpty())
	reg := service.NewRegistry()
	for _, s := range svcs {
		reg.Register(s)
	}
	return service.NewDispatcher(reg, store)
}

func signedTx(t *testing.T, serviceName, method string, payload any, cyclesLimit uint64) types.SignedTransaction {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := types.TransactionRequest{ServiceName: serviceName, Method: method, Payload: string(raw)}
	txRaw := types.RawTransaction{
		ChainID:     types.FromEmpty(),
		CyclesPrice: 1,
		CyclesLimit: cyclesLimit,
		Timeout:     1000,
		Request:     req,
	}
	return types.SignedTransaction{Raw: txRaw, TxHash: types.Keccak256([]byte(serviceName + method + string(raw)))}
}

func TestMultiSigGenerateAndGetAccount(t *testing.T) {
	owner := types.Address{0x1}
	member := types.Address{0x2}
	dispatcher := newDispatcher(t, builtin.New())

	genPayload := map[string]any{
		"owner": owner,
		"accounts": []map[string]any{
			{"address": member, "weight": 10},
		},
		"threshold": 10,
	}
	tx := signedTx(t, "multi_signature", "generate_account", genPayload, 1_000_000)
	receipt := dispatcher.Invoke(types.BlockHeader{ChainID: types.FromEmpty(), Height: 1}, tx)
	require.False(t, receipt.Response.IsError, receipt.Response.Ret)

	var genResp struct {
		Address types.Address `json:"address"`
	}
	require.NoError(t, json.Unmarshal([]byte(receipt.Response.Ret), &genResp))
	assert.NotEqual(t, types.Address{}, genResp.Address)

	getTx := signedTx(t, "multi_signature", "get_account_from_address",
		map[string]any{"multi_sig_address": genResp.Address}, 1_000_000)
	getReceipt := dispatcher.Invoke(types.BlockHeader{ChainID: types.FromEmpty(), Height: 2}, getTx)
	require.False(t, getReceipt.Response.IsError, getReceipt.Response.Ret)
}

func TestMultiSigGenerateRejectsBadThreshold(t *testing.T) {
	dispatcher := newDispatcher(t, builtin.New())
	owner := types.Address{0x1}
	member := types.Address{0x2}
	genPayload := map[string]any{
		"owner":     owner,
		"accounts":  []map[string]any{{"address": member, "weight": 1}},
		"threshold": 10,
	}
	tx := signedTx(t, "multi_signature", "generate_account", genPayload, 1_000_000)
	receipt := dispatcher.Invoke(types.BlockHeader{ChainID: types.FromEmpty(), Height: 1}, tx)
	assert.True(t, receipt.Response.IsError)
}

func TestMultiSigVerifySingleSignature(t *testing.T) {
	dispatcher := newDispatcher(t, builtin.New())
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PubKeyCompressed()
	sender := types.AddressFromPubKey(pub)

	txHash := types.Keccak256([]byte("payload-under-signature"))
	sig := priv.Sign(txHash)

	payload := map[string]any{
		"tx_hash":    txHash,
		"sender":     sender,
		"pubkeys":    [][]byte{pub},
		"signatures": [][]byte{sig},
	}
	tx := signedTx(t, "multi_signature", "verify_signature", payload, 1_000_000)
	receipt := dispatcher.Invoke(types.BlockHeader{ChainID: types.FromEmpty(), Height: 1}, tx)
	assert.False(t, receipt.Response.IsError, receipt.Response.Ret)
}

func TestMetadataGenesisAndGet(t *testing.T) {
	dispatcher := newDispatcher(t, builtin.NewMetadata())
	meta := types.Metadata{ChainID: types.FromEmpty(), CyclesPrice: 1, CyclesLimit: 1000, Interval: 3000}
	payload, err := json.Marshal(meta)
	require.NoError(t, err)
	root, err := dispatcher.RunGenesis(types.FromEmpty(), types.Address{}, map[string]string{"metadata": string(payload)})
	require.NoError(t, err)
	assert.NotEqual(t, types.FromEmpty(), root)

	tx := signedTx(t, "metadata", "get_metadata", struct{}{}, 1_000_000)
	receipt := dispatcher.Invoke(types.BlockHeader{ChainID: types.FromEmpty(), Height: 1}, tx)
	require.False(t, receipt.Response.IsError)

	var got types.Metadata
	require.NoError(t, json.Unmarshal([]byte(receipt.Response.Ret), &got))
	assert.Equal(t, meta.CyclesLimit, got.CyclesLimit)
}
