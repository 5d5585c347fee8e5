package types

// TransactionRequest names the service call a transaction invokes: a
// method on a registered service with a JSON-encoded payload.
type TransactionRequest struct {
	ServiceName string
	Method      string
	Payload     string
}

// RawTransaction is the unsigned body of a transaction.
type RawTransaction struct {
	ChainID     Hash
	Nonce       [32]byte
	CyclesPrice uint64
	CyclesLimit uint64
	// Timeout is the block height after which the tx is no longer valid.
	Timeout uint64
	Sender  Address
	Request TransactionRequest
}

// SignedTransaction pairs a RawTransaction with its hash, the signer's
// public key, and the signature over that hash.
//
// Invariants (checked by mempool.Pool.Insert): TxHash == digest(encode(Raw));
// Signature verifies TxHash under PubKey; AddressFromPubKey(PubKey) ==
// Raw.Sender.
type SignedTransaction struct {
	Raw       RawTransaction
	TxHash    Hash
	PubKey    []byte
	Signature []byte
}
