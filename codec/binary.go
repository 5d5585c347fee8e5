package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrShortBuffer is returned when decoding runs out of bytes before the
// declared layout is satisfied.
var ErrShortBuffer = errors.New("codec: short buffer")

// Writer builds a deterministic fixed-layout binary encoding. Field
// order is caller-controlled and must be stable across versions, since
// the output is hashed and compared across nodes.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// PutUint64 appends a big-endian uint64.
func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// PutUint32 appends a big-endian uint32.
func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// PutBytes appends a uint32 length prefix followed by the raw bytes.
func (w *Writer) PutBytes(b []byte) {
	w.PutUint32(uint32(len(b)))
	w.buf.Write(b)
}

// PutFixed appends raw bytes with no length prefix, for fixed-size
// fields (hashes, addresses).
func (w *Writer) PutFixed(b []byte) {
	w.buf.Write(b)
}

// Reader parses a buffer written by Writer.
type Reader struct {
	b   []byte
	off int
}

// NewReader wraps b for sequential decoding.
func NewReader(b []byte) *Reader { return &Reader{b: b} }

// Uint64 reads a big-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	if len(r.b)-r.off < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v, nil
}

// Uint32 reads a big-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	if len(r.b)-r.off < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

// Bytes reads a uint32-length-prefixed byte slice.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if len(r.b)-r.off < int(n) {
		return nil, ErrShortBuffer
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, r.b[r.off:r.off+int(n)])
	r.off += int(n)
	return out, nil
}

// Fixed reads exactly n raw bytes with no length prefix.
func (r *Reader) Fixed(n int) ([]byte, error) {
	if len(r.b)-r.off < n {
		return nil, ErrShortBuffer
	}
	out := make([]byte, n)
	copy(out, r.b[r.off:r.off+n])
	r.off += n
	return out, nil
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int {
	return len(r.b) - r.off
}

// Done returns io.ErrUnexpectedEOF if bytes remain unconsumed; callers
// use it at the end of a Decode to catch trailing garbage.
func (r *Reader) Done() error {
	if r.Remaining() != 0 {
		return io.ErrUnexpectedEOF
	}
	return nil
}
