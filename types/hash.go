// Package types implements the core data model: Hash, Address, Balance,
// transactions, blocks, receipts, and the service metadata record.
package types

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"
)

// HashLength is the size in bytes of a content digest.
const HashLength = 32

// Hash is a 32-byte Keccak-256 content digest. The zero value is the
// all-zero hash that FromEmpty returns.
type Hash [HashLength]byte

// FromEmpty returns the well-known all-zero hash used as the genesis
// predecessor and as the Merkle root of an empty tx set.
func FromEmpty() Hash {
	return Hash{}
}

// Keccak256 digests the given byte slices in order.
func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// IsEmpty reports whether h is the all-zero hash.
func (h Hash) IsEmpty() bool {
	return h == Hash{}
}

// Bytes returns a copy of the underlying 32 bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashLength)
	copy(b, h[:])
	return b
}

// String renders the hash as a 0x-prefixed hex string.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// HashFromBytes builds a Hash from a byte slice of exactly HashLength bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashLength {
		return h, errors.New("types: invalid hash length")
	}
	copy(h[:], b)
	return h, nil
}

// MerkleRoot is an alias of Hash; the root of an MPT.
type MerkleRoot = Hash

// MerkleFromHashes computes the root of a binary Merkle tree over leaf
// hashes in order. An empty slice yields FromEmpty().
func MerkleFromHashes(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return FromEmpty()
	}
	level := make([]Hash, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, Keccak256(level[i][:], level[i+1][:]))
			} else {
				// odd leaf is promoted by hashing it with itself
				next = append(next, Keccak256(level[i][:], level[i][:]))
			}
		}
		level = next
	}
	return level[0]
}
