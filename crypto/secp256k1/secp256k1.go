// Package secp256k1 implements transaction signing and address
// derivation over github.com/decred/dcrd/dcrec/secp256k1/v4, grounded
// on the teacher pack's own use of that module (orbas1-Synnergy's
// compliance.go parses issuer public keys with secp256k1.ParsePubKey)
// and on spec.md §3's "Address derived from a compressed secp256k1
// public key."
package secp256k1

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/mutanet/mutacore/crypto/hash"
)

// PrivateKey wraps a secp256k1 signing key.
type PrivateKey struct {
	inner *secp256k1.PrivateKey
}

// GeneratePrivateKey returns a fresh random signing key.
func GeneratePrivateKey() (*PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{inner: k}, nil
}

// PrivateKeyFromBytes loads a signing key from its 32-byte scalar.
func PrivateKeyFromBytes(b []byte) *PrivateKey {
	return &PrivateKey{inner: secp256k1.PrivKeyFromBytes(b)}
}

// PubKeyCompressed returns the 33-byte compressed public key.
func (k *PrivateKey) PubKeyCompressed() []byte {
	return k.inner.PubKey().SerializeCompressed()
}

// Sign signs a 32-byte digest and returns a DER-encoded signature.
func (k *PrivateKey) Sign(digest [hash.Size]byte) []byte {
	sig := ecdsa.Sign(k.inner, digest[:])
	return sig.Serialize()
}

// Bytes returns the raw 32-byte scalar.
func (k *PrivateKey) Bytes() []byte {
	return k.inner.Serialize()
}

// Verify checks a DER-encoded signature over digest under the given
// compressed public key.
func Verify(pubkeyCompressed []byte, digest [hash.Size]byte, sig []byte) error {
	pub, err := secp256k1.ParsePubKey(pubkeyCompressed)
	if err != nil {
		return errors.New("secp256k1: invalid public key: " + err.Error())
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return errors.New("secp256k1: invalid signature encoding: " + err.Error())
	}
	if !parsed.Verify(digest[:], pub) {
		return errors.New("secp256k1: signature verification failed")
	}
	return nil
}
