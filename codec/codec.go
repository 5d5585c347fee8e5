// Package codec provides the two serializers the node uses: a
// deterministic binary FixedCodec for anything that crosses the wire or
// is hashed (blocks, transactions, receipts, proofs), and the
// teacher-derived JSONCodec for on-chain tx payloads, which must remain
// utf-8 JSON per the service SDK contract.
package codec

import (
	"encoding/json"
	"fmt"
)

// CodecVersion represents the codec version.
type CodecVersion uint16

// CurrentVersion is the current codec version.
const CurrentVersion CodecVersion = 0

// Codec is the default payload marshaler.
var Codec = &JSONCodec{}

// JSONCodec implements JSON encoding/decoding for tx payloads.
type JSONCodec struct{}

// Marshal marshals an object to bytes.
func (c *JSONCodec) Marshal(version CodecVersion, v interface{}) ([]byte, error) {
	if version != CurrentVersion {
		return nil, fmt.Errorf("codec: unsupported version %d", version)
	}
	return json.Marshal(v)
}

// Unmarshal unmarshals bytes to an object.
func (c *JSONCodec) Unmarshal(data []byte, v interface{}) (CodecVersion, error) {
	err := json.Unmarshal(data, v)
	return CurrentVersion, err
}

// FixedCodec is implemented by any type with a deterministic binary
// representation — the wire/hash codec used for blocks, transactions,
// receipts, and proofs. Encode must be a pure function of the value:
// two equal values always produce byte-identical output.
type FixedCodec interface {
	EncodeFixed() ([]byte, error)
}
