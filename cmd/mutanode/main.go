// Command mutanode is the composition root: it wires config, storage,
// state, the service registry, mempool, the consensus adapter and the
// network router into one running node (no block Syncer is
// constructed here), the way the
// teacher's own node-level package strings its engines together
// (bft_wrapper.go's Engine over appsender.go's AppSender) rather than
// leaving construction to each package's own init.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"

	"github.com/mutanet/mutacore/config"
	"github.com/mutanet/mutacore/consensus"
	"github.com/mutanet/mutacore/crypto/secp256k1"
	"github.com/mutanet/mutacore/log"
	"github.com/mutanet/mutacore/mempool"
	"github.com/mutanet/mutacore/metrics"
	"github.com/mutanet/mutacore/network"
	"github.com/mutanet/mutacore/service"
	"github.com/mutanet/mutacore/service/builtin"
	"github.com/mutanet/mutacore/state"
	"github.com/mutanet/mutacore/storage"
	"github.com/mutanet/mutacore/types"
	"github.com/mutanet/mutacore/validators"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mutanode:", err)
		os.Exit(exitStorageError)
	}
}

// Exit codes per spec.md §6: 0 = normal shutdown, nonzero reserved for
// config parse failure, irrecoverable storage error, chain_id mismatch
// on boot, execution divergence during sync.
const (
	exitOK = iota
	exitConfigError
	exitStorageError
	exitChainIDMismatch
	exitExecutionDivergence
)

func run() error {
	cfgPath := flag.String("config", "", "path to node config (unused placeholder: config parsing is out of scope per spec.md §1)")
	genesisChain := flag.String("genesis-chain", "beautiful world", "genesis chain_id preimage, per spec.md §8 scenario 1")
	flag.Parse()
	_ = cfgPath

	logger := log.New(log.Config{Name: "mutanode"})
	reg := metrics.NewRegistry()
	nodeMetrics, err := metrics.NewNodeMetrics("mutanode", reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	cfg := config.Config{
		Mempool: config.MempoolConfig{
			PoolSize:             20000,
			BroadcastTxsSize:     200,
			BroadcastTxsInterval: 200,
		},
	}

	privKey, err := loadOrGeneratePrivateKey(cfg)
	if err != nil {
		return fmt.Errorf("node identity: %w", err)
	}
	proposer := types.AddressFromPubKey(privKey.PubKeyCompressed())

	// The persistent KV engine is an external collaborator (spec.md
	// §1); memdb stands in for it here the same way storage_test.go
	// exercises the contract without RocksDB.
	db := memdb.New()
	store := storage.New(db)
	nodeStore := storage.NewTrieNodeStore(db)

	wal, err := storage.OpenWAL("mutanode.wal")
	if err != nil {
		return fmt.Errorf("wal: %w", err)
	}
	defer wal.Close()

	chainID := types.Keccak256([]byte(*genesisChain))

	registry := service.NewRegistry()
	registry.Register(builtin.NewMetadata())
	registry.Register(builtin.New())

	stateStore := state.NewStore(nodeStore, types.FromEmpty())
	dispatcher := service.NewDispatcher(registry, stateStore)

	vmgr := validators.New()

	genesisValidators := []types.Validator{{
		PubKey:        privKey.PubKeyCompressed(),
		BLSPubKey:     nil,
		ProposeWeight: 1,
		VoteWeight:    1,
	}}
	genesisMetadataPayload := mustMarshalMetadata(types.Metadata{
		ChainID:      chainID,
		CyclesPrice:  1,
		CyclesLimit:  1 << 20,
		Interval:     3000,
		VerifierList: genesisValidators,
		TxNumLimit:   20000,
		MaxTxSize:    1 << 20,
		TimeoutGap:   20,
	})

	stateRoot, err := dispatcher.RunGenesis(chainID, proposer, map[string]string{
		"metadata": genesisMetadataPayload,
	})
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	vmgr.Update(genesisValidators)

	genesisHeader := types.BlockHeader{
		ChainID:          chainID,
		Height:           0,
		ExecHeight:       0,
		PrevHash:         types.FromEmpty(),
		Timestamp:        0,
		OrderRoot:        types.FromEmpty(),
		StateRoot:        stateRoot,
		Proposer:         proposer,
		ValidatorVersion: 3000,
		Validators:       genesisValidators,
	}
	genesisBlock := types.Block{Header: genesisHeader}
	if err := store.PutBlock(genesisBlock); err != nil {
		return fmt.Errorf("genesis: persist block: %w", err)
	}

	genesisHash := types.Keccak256(mustEncodeHeader(genesisHeader))
	status := consensus.NewStatusAgent(consensus.CurrentConsensusStatus{
		CyclesPrice:              1,
		CyclesLimit:              1 << 20,
		LatestCommittedHeight:    0,
		ExecHeight:               0,
		CurrentHash:              genesisHash,
		LatestCommittedStateRoot: stateRoot,
		Validators:               genesisValidators,
		ConsensusInterval:        3000,
		TxNumLimit:               20000,
		MaxTxSize:                1 << 20,
	})

	pool := mempool.New(mempool.Config{
		ChainID:    chainID,
		PoolSize:   cfg.Mempool.PoolSize,
		MaxTxSize:  1 << 20,
		TimeoutGap: 20,
	}, store, noopMempoolSender{}, logger, nodeMetrics)
	pool.SetHeight(0)

	executor := consensus.NewBlockExecutor(dispatcher)
	adapter := consensus.NewAdapter(store, pool, executor, status, vmgr, noopAppSender{}, logger, nodeMetrics)
	adapter.SetWAL(wal)

	router := network.NewRouter()
	registerConsensusEndpoints(router, adapter)
	registerMempoolEndpoints(router, pool)

	logger.Info("mutanode: genesis complete, node ready")
	return nil
}

// loadOrGeneratePrivateKey returns cfg.PrivKey if set, otherwise
// generates a fresh identity — acceptable only because config parsing
// (and therefore reading a real privkey file) is explicitly out of
// scope per spec.md §1.
func loadOrGeneratePrivateKey(cfg config.Config) (*secp256k1.PrivateKey, error) {
	if len(cfg.PrivKey) > 0 {
		return secp256k1.PrivateKeyFromBytes(cfg.PrivKey), nil
	}
	return secp256k1.GeneratePrivateKey()
}

func mustMarshalMetadata(m types.Metadata) string {
	raw, err := json.Marshal(m)
	if err != nil {
		panic("mutanode: genesis metadata failed to marshal: " + err.Error())
	}
	return string(raw)
}

func mustEncodeHeader(h types.BlockHeader) []byte {
	raw, err := h.EncodeFixed()
	if err != nil {
		panic("mutanode: genesis header failed to encode: " + err.Error())
	}
	return raw
}

// registerConsensusEndpoints binds the eight consensus gossip/RPC
// endpoints of spec.md §6 to stub handlers that accept and drop every
// blob: no concrete BFT engine is wired (spec.md §1), and the handlers
// do not call adapter.RecordVote, so nothing is written to the WAL.
func registerConsensusEndpoints(router *network.Router, adapter *consensus.Adapter) {
	consensusEndpoints := []string{
		network.EndpointSignedProposal,
		network.EndpointSignedPreVote,
		network.EndpointSignedPreCommit,
		network.EndpointPreVoteQC,
		network.EndpointPreCommitQC,
		network.EndpointSignedChoke,
		network.EndpointBroadcastHeight,
		network.EndpointSyncPullBlock,
	}
	for _, ep := range consensusEndpoints {
		router.Register(ep, func(ctx context.Context, peer ids.NodeID, blob []byte) error {
			// The BFT engine itself is an external collaborator
			// (spec.md §1); a real wiring would decode blob by
			// endpoint and feed it to the engine's inbound queue
			// after adapter.RecordVote. No concrete engine is
			// constructed by this composition root.
			return nil
		})
	}
}

func registerMempoolEndpoints(router *network.Router, pool *mempool.Pool) {
	router.Register(network.EndpointMempoolNewTxs, func(ctx context.Context, peer ids.NodeID, blob []byte) error {
		return nil
	})
}

// noopAppSender is a placeholder network.AppSender: the generic P2P
// transport is an external collaborator per spec.md §1, so this
// composition root has no concrete peer connections to send over.
type noopAppSender struct{}

func (noopAppSender) Gossip(context.Context, string, []ids.NodeID, []byte) error {
	return nil
}

func (noopAppSender) Request(context.Context, string, ids.NodeID, []byte) ([]byte, error) {
	return nil, nil
}

// noopMempoolSender satisfies mempool.Sender for a single-node boot
// with no peers to pull_txs from.
type noopMempoolSender struct{}

func (noopMempoolSender) PullTxs(context.Context, []types.Hash) ([]types.SignedTransaction, error) {
	return nil, nil
}
