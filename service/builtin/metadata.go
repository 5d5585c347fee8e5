package builtin

import (
	"encoding/json"

	"github.com/mutanet/mutacore/service"
	"github.com/mutanet/mutacore/types"
)

// MetadataCellKey is the sub-trie cell the metadata service's current
// types.Metadata snapshot lives under. Only this service's own methods
// read it; consensus.Adapter.Commit receives the types.Metadata it
// refreshes CurrentConsensusStatus from as a parameter instead.
var MetadataCellKey = []byte("metadata")

// NewMetadata builds the metadata service: a genesis-seeded,
// admin-writable holder of the chain's types.Metadata (cycles price,
// cycles limit, verifier list, block-timing ratios), mirroring the
// role CurrentConsensusStatus.set_metadata plays against
// original_source/core/consensus/src/status.rs. No original_source
// file implements this as a standalone service — the source wires
// metadata updates straight through the consensus status cell — so
// this is a SPEC_FULL.md supplement giving services read access to
// chain parameters without reaching into the consensus layer.
func NewMetadata() *service.Service {
	return &service.Service{
		Name:    "metadata",
		Genesis: metadataGenesis,
		Methods: map[string]service.MethodBinding{
			"get_metadata": {Kind: service.ReadMethod, CycleCost: 1000, Handler: getMetadata},
			"set_metadata": {Kind: service.WriteMethod, CycleCost: 21000, Handler: setMetadata},
		},
	}
}

func metadataGenesis(sdk *service.SDK, payload string) service.ServiceResponse {
	var meta types.Metadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return service.Fail(1, "malformed genesis payload")
	}
	raw, _ := json.Marshal(meta)
	sdk.Insert(MetadataCellKey, raw)
	return service.Succeed("")
}

func getMetadata(sdk *service.SDK, _ string) service.ServiceResponse {
	raw, ok := sdk.Get(MetadataCellKey)
	if !ok {
		return service.Fail(110, "metadata not initialized")
	}
	return service.Succeed(string(raw))
}

// setMetadata is admin-gated: only the chain's current verifier list
// (the caller must be one of the configured verifiers) may update
// cycle pricing and block-timing parameters.
func setMetadata(sdk *service.SDK, payload string) service.ServiceResponse {
	var meta types.Metadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return service.Fail(1, "malformed payload")
	}
	raw, ok := sdk.Get(MetadataCellKey)
	if !ok {
		return service.Fail(110, "metadata not initialized")
	}
	var current types.Metadata
	if err := json.Unmarshal(raw, &current); err != nil {
		return service.Fail(111, "corrupt metadata cell")
	}
	caller := sdk.Caller()
	authorized := false
	for _, v := range current.VerifierList {
		if types.AddressFromPubKey(v.PubKey) == caller {
			authorized = true
			break
		}
	}
	if !authorized {
		return service.Fail(121, "caller is not a verifier")
	}
	out, _ := json.Marshal(meta)
	sdk.Insert(MetadataCellKey, out)
	return service.Succeed("")
}
