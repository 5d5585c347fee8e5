package state

import (
	"encoding/binary"
	"strconv"

	"github.com/mutanet/mutacore/crypto/hash"
	"github.com/mutanet/mutacore/types"
)

// StoreMap implements the hash-digested StoreMap variant resolved from
// spec.md §9's Open Question, grounded directly on
// original_source/framework/src/binding/store/map_new.rs's
// NewStoreMap: the length key is hash(name+"_map_len"), each value
// cell is hash(name_bytes ++ key_bytes), and each of the 16 bucket
// cells is hash(name+"map_"+index). The legacy string-concatenated
// length-key variant (DefaultStoreMap in the same source file) is not
// implemented — no on-disk migration from that format is in scope.
type StoreMap[K any, V any] struct {
	svc     *ServiceState
	varName string
	lenKey  types.Hash
	length  uint32

	encodeKey func(K) ([]byte, error)
	decodeKey func([]byte) (K, error)
	encodeVal func(V) ([]byte, error)
	decodeVal func([]byte) (V, error)
}

// NewStoreMap opens (or creates) a named map inside svc's sub-trie.
func NewStoreMap[K any, V any](
	svc *ServiceState,
	name string,
	encodeKey func(K) ([]byte, error),
	decodeKey func([]byte) (K, error),
	encodeVal func(V) ([]byte, error),
	decodeVal func([]byte) (V, error),
) *StoreMap[K, V] {
	lenKey := hash.Sum256([]byte(name + "_map_len"))
	m := &StoreMap[K, V]{
		svc: svc, varName: name, lenKey: lenKey,
		encodeKey: encodeKey, decodeKey: decodeKey,
		encodeVal: encodeVal, decodeVal: decodeVal,
	}
	if raw, ok := svc.Get(lenKey[:]); ok && len(raw) == 4 {
		m.length = binary.BigEndian.Uint32(raw)
	}
	return m
}

func (m *StoreMap[K, V]) mapValueKey(keyBytes []byte) types.Hash {
	return hash.Sum256([]byte(m.varName), keyBytes)
}

func (m *StoreMap[K, V]) bucketName(idx int) types.Hash {
	return hash.Sum256([]byte(m.varName + "map_" + strconv.Itoa(idx)))
}

func (m *StoreMap[K, V]) loadBucket(idx int) bucketList {
	name := m.bucketName(idx)
	raw, ok := m.svc.Get(name[:])
	if !ok {
		return nil
	}
	list, err := decodeBucketList(raw)
	if err != nil {
		return nil
	}
	return list
}

func (m *StoreMap[K, V]) storeBucket(idx int, list bucketList) {
	name := m.bucketName(idx)
	m.svc.Insert(name[:], encodeBucketList(list))
}

func (m *StoreMap[K, V]) setLen(n uint32) {
	m.length = n
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	m.svc.Insert(m.lenKey[:], b[:])
}

// Len returns the number of entries, matching the testable property
// (spec.md §8.7): sum over buckets of bucket length == Len().
func (m *StoreMap[K, V]) Len() uint32 { return m.length }

// IsEmpty reports whether the map has zero entries.
func (m *StoreMap[K, V]) IsEmpty() bool { return m.length == 0 }

// Contains reports whether key is present.
func (m *StoreMap[K, V]) Contains(key K) bool {
	keyBytes, err := m.encodeKey(key)
	if err != nil {
		return false
	}
	return m.loadBucket(bucketIndex(keyBytes)).contains(keyBytes)
}

// Get returns the value for key, if present.
func (m *StoreMap[K, V]) Get(key K) (V, bool) {
	var zero V
	keyBytes, err := m.encodeKey(key)
	if err != nil {
		return zero, false
	}
	if !m.loadBucket(bucketIndex(keyBytes)).contains(keyBytes) {
		return zero, false
	}
	mk := m.mapValueKey(keyBytes)
	raw, ok := m.svc.Get(mk[:])
	if !ok {
		return zero, false
	}
	v, err := m.decodeVal(raw)
	if err != nil {
		return zero, false
	}
	return v, true
}

// Insert sets key=value, registering key in its bucket on first
// insertion and bumping the length cell.
func (m *StoreMap[K, V]) Insert(key K, value V) error {
	keyBytes, err := m.encodeKey(key)
	if err != nil {
		return err
	}
	idx := bucketIndex(keyBytes)
	bucket := m.loadBucket(idx)
	if !bucket.contains(keyBytes) {
		bucket = append(bucket, keyBytes)
		m.storeBucket(idx, bucket)
		if m.length == ^uint32(0) {
			return ErrOverflow
		}
		m.setLen(m.length + 1)
	}
	valBytes, err := m.encodeVal(value)
	if err != nil {
		return err
	}
	mk := m.mapValueKey(keyBytes)
	m.svc.Insert(mk[:], valBytes)
	return nil
}

// Remove deletes key, returning the removed value if present.
func (m *StoreMap[K, V]) Remove(key K) (V, bool) {
	var zero V
	keyBytes, err := m.encodeKey(key)
	if err != nil {
		return zero, false
	}
	idx := bucketIndex(keyBytes)
	bucket := m.loadBucket(idx)
	if !bucket.contains(keyBytes) {
		return zero, false
	}
	value, _ := m.Get(key)
	m.storeBucket(idx, bucket.remove(keyBytes))
	mk := m.mapValueKey(keyBytes)
	m.svc.Remove(mk[:])
	if m.length == 0 {
		return value, true
	}
	m.setLen(m.length - 1)
	return value, true
}

// Iterate walks every (K, V) pair in bucket-then-insertion order,
// invoking fn for each. The order is a pure function of the
// insert/remove sequence, so it is identical across two processes
// given the same history (spec.md §8.7).
func (m *StoreMap[K, V]) Iterate(fn func(K, V) bool) {
	for idx := 0; idx < numBuckets; idx++ {
		bucket := m.loadBucket(idx)
		for _, keyBytes := range bucket {
			key, err := m.decodeKey(keyBytes)
			if err != nil {
				continue
			}
			mk := m.mapValueKey(keyBytes)
			raw, ok := m.svc.Get(mk[:])
			if !ok {
				continue
			}
			value, err := m.decodeVal(raw)
			if err != nil {
				continue
			}
			if !fn(key, value) {
				return
			}
		}
	}
}
