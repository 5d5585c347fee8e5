package state

import (
	"github.com/mutanet/mutacore/codec"
)

// numBuckets is the fixed bucket count spec.md §3 fixes for iterable
// maps: enumeration over an MPT has no native key ordering, so a
// StoreMap shards its keys across 16 shallow buckets, bounding a
// single write to one bucket's key list while keeping full enumeration
// parallelizable across buckets.
const numBuckets = 16

// bucketIndex is the pure function of encoded key bytes spec.md §3
// fixes: the high nibble of the key encoding's trailing byte.
func bucketIndex(keyBytes []byte) int {
	if len(keyBytes) == 0 {
		return 0
	}
	last := keyBytes[len(keyBytes)-1]
	return int((last >> 4) & 0x0F)
}

// bucketList is the ordered list of raw key encodings stored in one
// bucket cell, in insertion order.
type bucketList [][]byte

func encodeBucketList(b bucketList) []byte {
	w := codec.NewWriter()
	w.PutUint32(uint32(len(b)))
	for _, k := range b {
		w.PutBytes(k)
	}
	return w.Bytes()
}

func decodeBucketList(data []byte) (bucketList, error) {
	if len(data) == 0 {
		return nil, nil
	}
	r := codec.NewReader(data)
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	out := make(bucketList, 0, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func (b bucketList) contains(keyBytes []byte) bool {
	for _, k := range b {
		if bytesEqual(k, keyBytes) {
			return true
		}
	}
	return false
}

func (b bucketList) remove(keyBytes []byte) bucketList {
	out := make(bucketList, 0, len(b))
	for _, k := range b {
		if !bytesEqual(k, keyBytes) {
			out = append(out, k)
		}
	}
	return out
}
