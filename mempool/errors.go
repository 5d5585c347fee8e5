package mempool

import (
	"errors"
	"fmt"

	"github.com/mutanet/mutacore/types"
)

// Reason enumerates the MempoolReject sub-kinds of spec.md §7. Reason
// doubles as the trust-feedback signal fed back to the network layer
// for the peer a rejected tx arrived from.
type Reason int

const (
	ReasonWrongChainID Reason = iota
	ReasonTxTooLarge
	ReasonBadHash
	ReasonBadSig
	ReasonTimeout
	ReasonAlreadyCommitted
	ReasonPoolFull
	ReasonDuplicate
)

func (r Reason) String() string {
	switch r {
	case ReasonWrongChainID:
		return "wrong_chain_id"
	case ReasonTxTooLarge:
		return "tx_too_large"
	case ReasonBadHash:
		return "bad_hash"
	case ReasonBadSig:
		return "bad_sig"
	case ReasonTimeout:
		return "timeout"
	case ReasonAlreadyCommitted:
		return "already_committed"
	case ReasonPoolFull:
		return "pool_full"
	case ReasonDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// RejectError is returned by Pool.Insert on admission failure.
type RejectError struct {
	Reason Reason
	Hash   types.Hash
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("mempool: reject %s: %s", e.Reason, e.Hash)
}

// ErrMsgsLost is the sentinel spec.md §4.C pull-sync reports once a
// bounded retry still leaves hashes unresolved.
var ErrMsgsLost = errors.New("mempool: hashes missing after bounded retry")

// MsgsLostError carries the hashes a pull-sync attempt could not
// resolve, satisfying errors.Is against ErrMsgsLost.
type MsgsLostError struct {
	Hashes []types.Hash
}

func (e *MsgsLostError) Error() string {
	return fmt.Sprintf("mempool: %d hashes lost after bounded retry", len(e.Hashes))
}

func (e *MsgsLostError) Is(target error) bool { return target == ErrMsgsLost }

var (
	_ error = (*RejectError)(nil)
	_ error = (*MsgsLostError)(nil)
)
