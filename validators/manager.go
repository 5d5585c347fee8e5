// Package validators consolidates the teacher's near-duplicate
// validators/state.go and validators/validator_state.go (two
// Avalanche-subnet-keyed interfaces for the same concern) into the
// single height-keyed Manager spec.md §1 Non-goals calls for: "the
// validator set is supplied by a metadata service", not by
// permissionless discovery.
package validators

import "github.com/mutanet/mutacore/types"

// Manager answers the validator-set queries the Consensus Adapter and
// Block Sync need: the current set, one member's vote weight, and the
// set's total vote weight.
type Manager interface {
	GetValidators(height uint64) []types.Validator
	GetWeight(height uint64, pubkey []byte) uint32
	TotalWeight(height uint64) uint32
}

// Snapshot is the only validator-set source this spec allows: a single
// metadata-derived snapshot, refreshed by Update after every commit
// per spec.md §4.D "Validators = current metadata snapshot." height is
// accepted but ignored by every query method — the source does not
// keep a per-height validator history, only the latest committed one.
type Snapshot struct {
	validators []types.Validator
}

// New builds an empty Snapshot; Update must be called once genesis has
// seeded the metadata service.
func New() *Snapshot {
	return &Snapshot{}
}

// Update replaces the current snapshot, called by the Consensus
// Adapter's Commit path after reading the refreshed types.Metadata.
func (m *Snapshot) Update(validators []types.Validator) {
	m.validators = append([]types.Validator(nil), validators...)
}

func (m *Snapshot) GetValidators(_ uint64) []types.Validator {
	return append([]types.Validator(nil), m.validators...)
}

func (m *Snapshot) GetWeight(_ uint64, pubkey []byte) uint32 {
	for _, v := range m.validators {
		if string(v.PubKey) == string(pubkey) {
			return v.VoteWeight
		}
	}
	return 0
}

func (m *Snapshot) TotalWeight(_ uint64) uint32 {
	var total uint32
	for _, v := range m.validators {
		total += v.VoteWeight
	}
	return total
}

var _ Manager = (*Snapshot)(nil)
