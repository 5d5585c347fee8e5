// Package config defines the node's recognized configuration options,
// matching spec.md §6 exactly: network topology, mempool capacity,
// executor trie mode, and the KV resource cap. GraphQL options are
// typed but intentionally unconsumed — the API front-end is out of
// scope per spec.md §1.
package config

// Config is the root configuration record loaded at node startup.
type Config struct {
	// PrivKey is the node's secp256k1 secret, the source of its address
	// and its signing identity for proposals, votes, and gossiped txs.
	PrivKey []byte

	Network  NetworkConfig
	Mempool  MempoolConfig
	Executor ExecutorConfig
	RocksDB  RocksDBConfig
	GraphQL  GraphQLConfig
}

// NetworkConfig controls transport topology and tuning.
type NetworkConfig struct {
	ListeningAddress string
	Bootstraps       []string
	Allowlist        []string
	AllowlistOnly    bool

	MaxConnections   int
	SameIPConnLimit  int
	InboundConnLimit int
	RPCTimeoutMS     int
	PingIntervalMS   int
}

// MempoolConfig controls admission capacity and gossip batching.
type MempoolConfig struct {
	PoolSize             int
	BroadcastTxsSize     int
	BroadcastTxsInterval int
}

// ExecutorConfig controls the state store's trie cache mode.
type ExecutorConfig struct {
	// Light, when true, runs with a pruned trie cache rather than
	// retaining full historical tries.
	Light bool
}

// RocksDBConfig bounds the KV engine's resource usage. The engine
// itself is an external collaborator (spec.md §1); this only carries
// the one option the core reads back out of config.
type RocksDBConfig struct {
	MaxOpenFiles int
}

// GraphQLConfig is parsed but never consumed by the core; it exists so
// a single config file can drive both this module and the (out of
// scope) API front-end without an unknown-field error.
type GraphQLConfig struct {
	ListeningAddress string
	GraphQLURI       string
	GraphiQLURI      string
	MaxFeeLimit      uint64
	Workers          int
	MaxConnections   int
}

// Default returns a Config with the same conservative defaults the
// teacher's node ships with, scaled to a single-node devnet.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			ListeningAddress: "0.0.0.0:2337",
			MaxConnections:   40,
			SameIPConnLimit:  1,
			InboundConnLimit: 40,
			RPCTimeoutMS:     5000,
			PingIntervalMS:   15000,
		},
		Mempool: MempoolConfig{
			PoolSize:             20000,
			BroadcastTxsSize:     200,
			BroadcastTxsInterval: 200,
		},
		Executor: ExecutorConfig{Light: false},
		RocksDB:  RocksDBConfig{MaxOpenFiles: 64},
	}
}
