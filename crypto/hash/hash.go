// Package hash re-exports the Keccak-256 digest used throughout the
// node so crypto subpackages don't need to import types.
package hash

import "golang.org/x/crypto/sha3"

// Size is the digest length in bytes.
const Size = 32

// Sum256 digests the given byte slices in order, matching the
// Keccak-256 construction used for types.Hash and Address derivation.
func Sum256(data ...[]byte) [Size]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [Size]byte
	copy(out[:], h.Sum(nil))
	return out
}
