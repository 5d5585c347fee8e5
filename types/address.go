package types

import (
	"encoding/hex"
	"errors"
)

// AddressLength is the size in bytes of an identity address.
const AddressLength = 20

// Address is a 20-byte identity derived from the Keccak-256 digest of a
// compressed secp256k1 public key.
type Address [AddressLength]byte

// AddressFromPubKey derives an Address from a compressed secp256k1 public key.
func AddressFromPubKey(pubkey []byte) Address {
	digest := Keccak256(pubkey)
	var addr Address
	copy(addr[:], digest[HashLength-AddressLength:])
	return addr
}

// AddressFromHash derives an Address from an arbitrary hash, used by
// services that mint addresses deterministically (e.g. multi-signature
// accounts keyed by the originating tx hash).
func AddressFromHash(h Hash) Address {
	var addr Address
	copy(addr[:], h[HashLength-AddressLength:])
	return addr
}

// Bytes returns a copy of the underlying 20 bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

// IsEmpty reports whether a is the all-zero address.
func (a Address) IsEmpty() bool {
	return a == Address{}
}

// String renders the address as a 0x-prefixed hex string.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// AddressFromBytes builds an Address from a byte slice of exactly
// AddressLength bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, errors.New("types: invalid address length")
	}
	copy(a[:], b)
	return a, nil
}
