package state

import (
	"encoding/binary"
	"strconv"

	"github.com/mutanet/mutacore/crypto/hash"
)

// StoreArray implements the Array<T> cell layout of spec.md §3: a
// length cell plus one value cell per index.
type StoreArray[T any] struct {
	svc       *ServiceState
	varName   string
	lenKey    [32]byte
	length    uint32
	encodeVal func(T) ([]byte, error)
	decodeVal func([]byte) (T, error)
}

// NewStoreArray opens (or creates) a named array inside svc's sub-trie.
func NewStoreArray[T any](
	svc *ServiceState,
	name string,
	encodeVal func(T) ([]byte, error),
	decodeVal func([]byte) (T, error),
) *StoreArray[T] {
	lenKey := hash.Sum256([]byte(name + "_array_len"))
	a := &StoreArray[T]{svc: svc, varName: name, lenKey: lenKey, encodeVal: encodeVal, decodeVal: decodeVal}
	if raw, ok := svc.Get(lenKey[:]); ok && len(raw) == 4 {
		a.length = binary.BigEndian.Uint32(raw)
	}
	return a
}

func (a *StoreArray[T]) indexKey(i uint32) [32]byte {
	return hash.Sum256([]byte(a.varName + "array_" + strconv.FormatUint(uint64(i), 10)))
}

// Len returns the number of elements.
func (a *StoreArray[T]) Len() uint32 { return a.length }

// Get returns the element at index i.
func (a *StoreArray[T]) Get(i uint32) (T, bool) {
	var zero T
	if i >= a.length {
		return zero, false
	}
	key := a.indexKey(i)
	raw, ok := a.svc.Get(key[:])
	if !ok {
		return zero, false
	}
	v, err := a.decodeVal(raw)
	if err != nil {
		return zero, false
	}
	return v, true
}

// Push appends value at the end of the array.
func (a *StoreArray[T]) Push(value T) error {
	valBytes, err := a.encodeVal(value)
	if err != nil {
		return err
	}
	key := a.indexKey(a.length)
	a.svc.Insert(key[:], valBytes)
	if a.length == ^uint32(0) {
		return ErrOverflow
	}
	a.length++
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], a.length)
	a.svc.Insert(a.lenKey[:], b[:])
	return nil
}

// Set overwrites the element at index i.
func (a *StoreArray[T]) Set(i uint32, value T) error {
	if i >= a.length {
		return ErrGetNone
	}
	valBytes, err := a.encodeVal(value)
	if err != nil {
		return err
	}
	key := a.indexKey(i)
	a.svc.Insert(key[:], valBytes)
	return nil
}
