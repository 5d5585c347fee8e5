package state

import "errors"

// Error kinds for the state store, per spec.md §7 StorageFail /
// state-level error conditions in §4.A.
var (
	// ErrDecodeError is returned when stored bytes cannot be
	// deserialized into the declared type.
	ErrDecodeError = errors.New("state: decode error")
	// ErrGetNone is returned on a mandatory lookup miss.
	ErrGetNone = errors.New("state: key not found")
	// ErrOverflow is returned on arithmetic wraparound in a numeric
	// cell (e.g. StoreMap length counters).
	ErrOverflow = errors.New("state: overflow")
)
