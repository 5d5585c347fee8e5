package types

// BlockHeader carries everything needed to verify a block's place in the
// chain and the execution lag between proposal height and exec height.
type BlockHeader struct {
	ChainID    Hash
	Height     uint64
	ExecHeight uint64
	PrevHash   Hash
	Timestamp  uint64 // milliseconds

	OrderRoot                MerkleRoot // Merkle root of OrderedTxHashes
	OrderSignedTxsHash       Hash
	ConfirmRoot              []MerkleRoot
	StateRoot                MerkleRoot
	ReceiptRoot              []MerkleRoot
	CyclesUsed               []uint64
	Proposer                 Address
	Proof                    Proof // proof of height-1
	ValidatorVersion         uint64
	Validators               []Validator
}

// Block is a header plus the ordered transaction hashes it commits to.
type Block struct {
	Header         BlockHeader
	OrderedTxHashes []Hash
}

// Proof is a quorum certificate: an aggregated signature over a
// (height, round, block_hash) vote set.
type Proof struct {
	Height              uint64
	Round               uint64
	BlockHash           Hash
	AggregatedSignature []byte
	ParticipantBitmap   []byte
}

// Validator is one member of the consensus validator set. PubKey is
// the secp256k1 compressed public key identity spec.md §3 derives
// Address from; BLSPubKey is the separate BLS12-381 key a validator
// signs QC votes with, aggregated into a Proof's AggregatedSignature.
// The split mirrors original_source/byzantine/src/default_start.rs's
// ValidatorExtend.bls_pub_key living alongside the block-level
// Validator's identity key.
type Validator struct {
	PubKey        []byte
	BLSPubKey     []byte
	ProposeWeight uint32
	VoteWeight    uint32
}

// Metadata is the on-chain configuration record the metadata service
// persists; the Consensus Adapter refreshes CurrentConsensusStatus from
// it on every commit.
type Metadata struct {
	ChainID        Hash
	CyclesPrice    uint64
	CyclesLimit    uint64
	Interval       uint64
	VerifierList   []Validator
	ProposeRatio   uint64
	PrevoteRatio   uint64
	PrecommitRatio uint64
	BrakeRatio     uint64
	TxNumLimit     uint64
	MaxTxSize      uint64
	TimeoutGap     uint64
}
