// Package bls gives the teacher's placeholder crypto/bls/bls.go and
// crypto/bls/types.go (Sign/Verify/AggregatePartial/VerifyAggregate
// stubs, PublicKey/SecretKey/Signature byte-array shapes) a real
// implementation over github.com/supranational/blst, the BLS12-381
// backend the teacher's own go.mod already carries. Public keys live in
// G1 (48-byte compressed) and signatures in G2 (96-byte compressed),
// matching the byte widths the teacher's stub types already assumed.
package bls

import (
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// domainSeparationTag scopes signatures to this chain's quorum-
// certificate scheme so they cannot be replayed against another BLS
// deployment sharing the same curve.
var domainSeparationTag = []byte("MUTACORE_BLS_QC_BLS12381G2_XMD:SHA-256_SSWU_RO_")

// PrivateKey is a BLS12-381 secret scalar.
type PrivateKey struct {
	sk *blst.SecretKey
}

// PublicKey is a compressed G1 point.
type PublicKey struct {
	pk *blst.P1Affine
}

// Signature is a compressed G2 point.
type Signature struct {
	sig *blst.P2Affine
}

// GenerateKey derives a key pair from 32 bytes of key material.
func GenerateKey(ikm [32]byte) (*PrivateKey, error) {
	sk := new(blst.SecretKey)
	sk.KeyGen(ikm[:])
	return &PrivateKey{sk: sk}, nil
}

// PrivateKeyFromBytes deserializes a 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	sk := new(blst.SecretKey)
	if !sk.Deserialize(b) {
		return nil, errors.New("bls: invalid secret key encoding")
	}
	return &PrivateKey{sk: sk}, nil
}

// PublicKey returns the corresponding compressed G1 public key.
func (k *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{pk: new(blst.P1Affine).From(k.sk)}
}

// Sign signs msg, producing a compressed G2 signature.
func (k *PrivateKey) Sign(msg []byte) *Signature {
	return &Signature{sig: new(blst.P2Affine).Sign(k.sk, msg, domainSeparationTag)}
}

// Bytes serializes the public key to 48 compressed bytes.
func (p *PublicKey) Bytes() []byte {
	return p.pk.Compress()
}

// PublicKeyFromBytes deserializes a 48-byte compressed G1 point.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	pk := new(blst.P1Affine).Uncompress(b)
	if pk == nil || !pk.KeyValidate() {
		return nil, errors.New("bls: invalid public key encoding")
	}
	return &PublicKey{pk: pk}, nil
}

// Bytes serializes the signature to 96 compressed bytes.
func (s *Signature) Bytes() []byte {
	return s.sig.Compress()
}

// SignatureFromBytes deserializes a 96-byte compressed G2 point.
func SignatureFromBytes(b []byte) (*Signature, error) {
	sig := new(blst.P2Affine).Uncompress(b)
	if sig == nil {
		return nil, errors.New("bls: invalid signature encoding")
	}
	return &Signature{sig: sig}, nil
}

// Verify checks a single signature against a single public key.
func Verify(pk *PublicKey, msg []byte, sig *Signature) bool {
	return sig.sig.Verify(true, pk.pk, true, msg, domainSeparationTag)
}

// Aggregate combines partial signatures — one per voting validator —
// into the Proof's AggregatedSignature, matching spec.md §3's Proof
// having a single aggregated_signature field regardless of quorum size.
func Aggregate(sigs []*Signature) (*Signature, error) {
	if len(sigs) == 0 {
		return nil, errors.New("bls: cannot aggregate zero signatures")
	}
	agg := new(blst.P2Aggregate)
	raw := make([]*blst.P2Affine, len(sigs))
	for i, s := range sigs {
		raw[i] = s.sig
	}
	if !agg.Aggregate(raw, true) {
		return nil, errors.New("bls: aggregation failed group check")
	}
	return &Signature{sig: agg.ToAffine()}, nil
}

// VerifyAggregate checks an aggregated signature against the set of
// public keys that jointly signed the same message — the QC
// verification spec.md §4.D "proof verifies under prior validators"
// requires.
func VerifyAggregate(msg []byte, pubkeys []*PublicKey, sig *Signature) bool {
	if len(pubkeys) == 0 {
		return false
	}
	raw := make([]*blst.P1Affine, len(pubkeys))
	for i, pk := range pubkeys {
		raw[i] = pk.pk
	}
	return sig.sig.FastAggregateVerify(true, raw, msg, domainSeparationTag)
}
