// Package builtin holds the node's native-code services: multi_signature
// and metadata, grounded on
// original_source/built-in-services/multi-signature/src/lib.rs and
// original_source/core/consensus/src/status.rs respectively. Both are
// supplements spec.md's distillation dropped but a complete node
// carries, per SPEC_FULL.md.
package builtin

import (
	"encoding/json"

	"github.com/mutanet/mutacore/crypto/secp256k1"
	"github.com/mutanet/mutacore/service"
	"github.com/mutanet/mutacore/types"
)

// MaxPermissionAccounts bounds a multi-sig account's member count,
// matching the source's MAX_PERMISSION_ACCOUNTS.
const MaxPermissionAccounts = 16

var permissionCellKey = []byte{0}

// MultiSigAccount is one member of a MultiSigPermission.
type MultiSigAccount struct {
	Address types.Address `json:"address"`
	Weight  uint32        `json:"weight"`
}

// MultiSigPermission is the account record stored under cell 0 of a
// multi-sig address, mirroring the source's MultiSigPermission.
type MultiSigPermission struct {
	Accounts  []MultiSigAccount `json:"accounts"`
	Owner     types.Address     `json:"owner"`
	Threshold uint32            `json:"threshold"`
}

func weightSum(accounts []MultiSigAccount) uint32 {
	var sum uint32
	for _, a := range accounts {
		sum += a.Weight
	}
	return sum
}

// Witness carries the signatures and public keys presented against a
// multi-sig operation, mirroring the source's Witness.
type Witness struct {
	Sender     types.Address `json:"sender"`
	Pubkeys    [][]byte      `json:"pubkeys"`
	Signatures [][]byte      `json:"signatures"`
}

type generateAccountPayload struct {
	Owner     types.Address     `json:"owner"`
	Accounts  []MultiSigAccount `json:"accounts"`
	Threshold uint32            `json:"threshold"`
}

type generateAccountResponse struct {
	Address types.Address `json:"address"`
}

type getAccountPayload struct {
	MultiSigAddress types.Address `json:"multi_sig_address"`
}

type getAccountResponse struct {
	Permission MultiSigPermission `json:"permission"`
}

type changeOwnerPayload struct {
	MultiSigAddress types.Address `json:"multi_sig_address"`
	NewOwner        types.Address `json:"new_owner"`
	Witness         Witness       `json:"witness"`
}

type addAccountPayload struct {
	MultiSigAddress types.Address   `json:"multi_sig_address"`
	NewAccount      MultiSigAccount `json:"new_account"`
	Witness         Witness         `json:"witness"`
}

type removeAccountPayload struct {
	MultiSigAddress types.Address `json:"multi_sig_address"`
	AccountAddress  types.Address `json:"account_address"`
	Witness         Witness       `json:"witness"`
}

type setAccountWeightPayload struct {
	MultiSigAddress types.Address `json:"multi_sig_address"`
	AccountAddress  types.Address `json:"account_address"`
	NewWeight       uint32        `json:"new_weight"`
	Witness         Witness       `json:"witness"`
}

type setThresholdPayload struct {
	MultiSigAddress types.Address `json:"multi_sig_address"`
	NewThreshold    uint32        `json:"new_threshold"`
	Witness         Witness       `json:"witness"`
}

type verifySignaturePayload struct {
	TxHash     types.Hash    `json:"tx_hash"`
	Sender     types.Address `json:"sender"`
	Pubkeys    [][]byte      `json:"pubkeys"`
	Signatures [][]byte      `json:"signatures"`
}

func getPermission(sdk *service.SDK, addr types.Address) (MultiSigPermission, bool) {
	var perm MultiSigPermission
	raw, ok := sdk.GetAccountValue(addr, permissionCellKey)
	if !ok {
		return perm, false
	}
	if err := json.Unmarshal(raw, &perm); err != nil {
		return perm, false
	}
	return perm, true
}

func setPermission(sdk *service.SDK, addr types.Address, perm MultiSigPermission) {
	raw, _ := json.Marshal(perm)
	sdk.SetAccountValue(addr, permissionCellKey, raw)
}

// verifySingle checks one secp256k1 signature against tx_hash.
func verifySingle(txHash types.Hash, sig, pubkey []byte) bool {
	return secp256k1.Verify(pubkey, txHash, sig) == nil
}

// verifyWitness checks every (sig, pubkey) pair in w against the
// permission registered for sender and reports whether the
// accumulated weight reaches the threshold. This flattens the
// source's recursive account-owned-by-another-multisig-account case
// (_verify_multi_signature's nested-Witness branch) to direct
// secp256k1 signer membership; multisig-of-multisig nesting is not
// implemented.
func verifyWitness(sdk *service.SDK, txHash types.Hash, sender types.Address, w Witness) service.ServiceResponse {
	if len(w.Signatures) != len(w.Pubkeys) {
		return service.Fail(116, "len of signatures and pubkeys must be equal")
	}
	if len(w.Pubkeys) == 0 || len(w.Pubkeys) > MaxPermissionAccounts {
		return service.Fail(117, "len of signatures must be [1,16]")
	}
	perm, ok := getPermission(sdk, sender)
	if !ok {
		return service.Fail(117, "account not existed")
	}
	weightOf := func(addr types.Address) uint32 {
		for _, a := range perm.Accounts {
			if a.Address == addr {
				return a.Weight
			}
		}
		return 0
	}
	var acc uint32
	for i := range w.Signatures {
		addr := types.AddressFromPubKey(w.Pubkeys[i])
		if !verifySingle(txHash, w.Signatures[i], w.Pubkeys[i]) {
			continue
		}
		acc += weightOf(addr)
		if acc >= perm.Threshold {
			return service.Succeed("")
		}
	}
	return service.Fail(118, "multi signature weight not reach the threshold")
}

// New builds the multi_signature service, registering its genesis-free
// method table with the same fixed cycle costs the source annotates
// each method with (#[cycles(...)]).
func New() *service.Service {
	return &service.Service{
		Name: "multi_signature",
		Methods: map[string]service.MethodBinding{
			"generate_account": {Kind: service.WriteMethod, CycleCost: 21000, Handler: generateAccount},
			"get_account_from_address": {
				Kind: service.ReadMethod, CycleCost: 10000, Handler: getAccountFromAddress,
			},
			"change_owner":       {Kind: service.WriteMethod, CycleCost: 10000, Handler: changeOwner},
			"add_account":        {Kind: service.WriteMethod, CycleCost: 21000, Handler: addAccount},
			"remove_account":     {Kind: service.WriteMethod, CycleCost: 21000, Handler: removeAccount},
			"set_account_weight": {Kind: service.WriteMethod, CycleCost: 21000, Handler: setAccountWeight},
			"set_threshold":      {Kind: service.WriteMethod, CycleCost: 21000, Handler: setThreshold},
			"verify_signature":   {Kind: service.ReadMethod, CycleCost: 10000, Handler: verifySignature},
		},
	}
}

func generateAccount(sdk *service.SDK, payload string) service.ServiceResponse {
	var p generateAccountPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return service.Fail(1, "malformed payload")
	}
	if len(p.Accounts) == 0 || len(p.Accounts) > MaxPermissionAccounts {
		return service.Fail(110, "accounts length must be [1,16]")
	}
	if p.Threshold == 0 || weightSum(p.Accounts) < p.Threshold {
		return service.Fail(110, "accounts weight or threshold not valid")
	}
	addr := types.AddressFromHash(sdk.TxHash())
	setPermission(sdk, addr, MultiSigPermission{Accounts: p.Accounts, Owner: p.Owner, Threshold: p.Threshold})
	out, _ := json.Marshal(generateAccountResponse{Address: addr})
	return service.Succeed(string(out))
}

func getAccountFromAddress(sdk *service.SDK, payload string) service.ServiceResponse {
	var p getAccountPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return service.Fail(1, "malformed payload")
	}
	perm, ok := getPermission(sdk, p.MultiSigAddress)
	if !ok {
		return service.Fail(110, "account not existed")
	}
	out, _ := json.Marshal(getAccountResponse{Permission: perm})
	return service.Succeed(string(out))
}

func changeOwner(sdk *service.SDK, payload string) service.ServiceResponse {
	var p changeOwnerPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return service.Fail(1, "malformed payload")
	}
	perm, ok := getPermission(sdk, p.MultiSigAddress)
	if !ok {
		return service.Fail(110, "account not existed")
	}
	if perm.Owner != p.Witness.Sender {
		return service.Fail(121, "invalid owner")
	}
	if resp := verifyWitness(sdk, sdk.TxHash(), p.Witness.Sender, p.Witness); resp.IsError() {
		return service.Fail(120, "owner signature verified failed")
	}
	perm.Owner = p.NewOwner
	setPermission(sdk, p.MultiSigAddress, perm)
	return service.Succeed("")
}

func addAccount(sdk *service.SDK, payload string) service.ServiceResponse {
	var p addAccountPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return service.Fail(1, "malformed payload")
	}
	perm, ok := getPermission(sdk, p.MultiSigAddress)
	if !ok {
		return service.Fail(110, "account not existed")
	}
	if perm.Owner != p.Witness.Sender {
		return service.Fail(121, "invalid owner")
	}
	if len(perm.Accounts) == MaxPermissionAccounts {
		return service.Fail(122, "the account count reach max value")
	}
	if resp := verifyWitness(sdk, sdk.TxHash(), p.Witness.Sender, p.Witness); resp.IsError() {
		return service.Fail(120, "owner signature verified failed")
	}
	perm.Accounts = append(perm.Accounts, p.NewAccount)
	setPermission(sdk, p.MultiSigAddress, perm)
	return service.Succeed("")
}

func removeAccount(sdk *service.SDK, payload string) service.ServiceResponse {
	var p removeAccountPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return service.Fail(1, "malformed payload")
	}
	perm, ok := getPermission(sdk, p.MultiSigAddress)
	if !ok {
		return service.Fail(110, "account not existed")
	}
	if perm.Owner != p.Witness.Sender {
		return service.Fail(121, "invalid owner")
	}
	if resp := verifyWitness(sdk, sdk.TxHash(), p.Witness.Sender, p.Witness); resp.IsError() {
		return service.Fail(120, "owner signature verified failed")
	}
	idx := -1
	for i, a := range perm.Accounts {
		if a.Address == p.AccountAddress {
			idx = i
			break
		}
	}
	if idx < 0 {
		return service.Fail(110, "account not existed")
	}
	removed := perm.Accounts[idx]
	rest := append(append([]MultiSigAccount{}, perm.Accounts[:idx]...), perm.Accounts[idx+1:]...)
	if weightSum(rest) < perm.Threshold {
		return service.Fail(124, "the sum of weight will below threshold after remove the account")
	}
	perm.Accounts = rest
	setPermission(sdk, p.MultiSigAddress, perm)
	out, _ := json.Marshal(removed)
	return service.Succeed(string(out))
}

func setAccountWeight(sdk *service.SDK, payload string) service.ServiceResponse {
	var p setAccountWeightPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return service.Fail(1, "malformed payload")
	}
	perm, ok := getPermission(sdk, p.MultiSigAddress)
	if !ok {
		return service.Fail(110, "account not existed")
	}
	if perm.Owner != p.Witness.Sender {
		return service.Fail(121, "invalid owner")
	}
	if resp := verifyWitness(sdk, sdk.TxHash(), p.Witness.Sender, p.Witness); resp.IsError() {
		return service.Fail(120, "owner signature verified failed")
	}
	found := false
	for i, a := range perm.Accounts {
		if a.Address == p.AccountAddress {
			perm.Accounts[i].Weight = p.NewWeight
			found = true
			break
		}
	}
	if !found {
		return service.Fail(110, "account not existed")
	}
	setPermission(sdk, p.MultiSigAddress, perm)
	return service.Succeed("")
}

func setThreshold(sdk *service.SDK, payload string) service.ServiceResponse {
	var p setThresholdPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return service.Fail(1, "malformed payload")
	}
	perm, ok := getPermission(sdk, p.MultiSigAddress)
	if !ok {
		return service.Fail(110, "account not existed")
	}
	if perm.Owner != p.Witness.Sender {
		return service.Fail(121, "invalid owner")
	}
	if weightSum(perm.Accounts) < p.NewThreshold {
		return service.Fail(123, "new threshold larger the sum of the weights")
	}
	if resp := verifyWitness(sdk, sdk.TxHash(), p.Witness.Sender, p.Witness); resp.IsError() {
		return service.Fail(120, "owner signature verified failed")
	}
	perm.Threshold = p.NewThreshold
	setPermission(sdk, p.MultiSigAddress, perm)
	return service.Succeed("")
}

func verifySignature(sdk *service.SDK, payload string) service.ServiceResponse {
	var p verifySignaturePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return service.Fail(1, "malformed payload")
	}
	if len(p.Signatures) != len(p.Pubkeys) {
		return service.Fail(116, "len of signatures and pubkeys must be equal")
	}
	if len(p.Pubkeys) == 1 {
		addr := types.AddressFromPubKey(p.Pubkeys[0])
		if addr != p.Sender {
			return service.Fail(111, "invalid sender")
		}
		if !verifySingle(p.TxHash, p.Signatures[0], p.Pubkeys[0]) {
			return service.Fail(112, "signature verify failed")
		}
		return service.Succeed("")
	}
	return verifyWitness(sdk, p.TxHash, p.Sender, Witness{Sender: p.Sender, Pubkeys: p.Pubkeys, Signatures: p.Signatures})
}
