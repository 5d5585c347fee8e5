// Package network generalizes the teacher's Avalanche-snowman-flavored
// appsender.go (AppSender) and sender.go (Sender) into the ten typed
// endpoints spec.md §6 names: eight consensus endpoints (the BFT
// engine's proposal/vote/QC/choke/height-broadcast/sync-pull traffic)
// plus two mempool endpoints (new-tx gossip and pull_txs RPC).
package network

// Endpoint names exactly as spec.md §6's wire-message table lists
// them. Every registered Handler is keyed by one of these.
const (
	EndpointSignedProposal  = "/gossip/consensus/signed_proposal"
	EndpointSignedPreVote   = "/gossip/consensus/signed_pre_vote"
	EndpointSignedPreCommit = "/gossip/consensus/signed_pre_commit"
	EndpointPreVoteQC       = "/gossip/consensus/pre_vote_qc"
	EndpointPreCommitQC     = "/gossip/consensus/pre_commit_qc"
	EndpointSignedChoke     = "/gossip/consensus/signed_choke"
	EndpointBroadcastHeight = "/gossip/consensus/broadcast_height"
	EndpointSyncPullBlock   = "/rpc_call/consensus/sync_pull_block"
	EndpointMempoolNewTxs   = "/gossip/mempool/new_txs"
	EndpointMempoolPullTxs  = "/rpc_call/mempool/pull_txs"
)

// GossipEndpoints lists every fire-and-forget endpoint, in table order.
var GossipEndpoints = []string{
	EndpointSignedProposal,
	EndpointSignedPreVote,
	EndpointSignedPreCommit,
	EndpointPreVoteQC,
	EndpointPreCommitQC,
	EndpointSignedChoke,
	EndpointBroadcastHeight,
	EndpointMempoolNewTxs,
}

// RPCEndpoints lists every request/response endpoint.
var RPCEndpoints = []string{
	EndpointSyncPullBlock,
	EndpointMempoolPullTxs,
}
