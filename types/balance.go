package types

import "math/big"

// Balance is an unbounded nonnegative integer, serialized big-endian.
type Balance struct {
	v *big.Int
}

// NewBalance wraps an unsigned 64-bit amount.
func NewBalance(v uint64) Balance {
	return Balance{v: new(big.Int).SetUint64(v)}
}

// ZeroBalance returns the additive identity.
func ZeroBalance() Balance {
	return Balance{v: new(big.Int)}
}

// BalanceFromBytes decodes a big-endian unsigned integer.
func BalanceFromBytes(b []byte) Balance {
	return Balance{v: new(big.Int).SetBytes(b)}
}

// Bytes encodes the balance as a big-endian unsigned integer with no
// leading zero bytes (big.Int.Bytes semantics).
func (b Balance) Bytes() []byte {
	if b.v == nil {
		return []byte{}
	}
	return b.v.Bytes()
}

// Add returns a new Balance equal to b+other.
func (b Balance) Add(other Balance) Balance {
	return Balance{v: new(big.Int).Add(b.bigOrZero(), other.bigOrZero())}
}

// Sub returns a new Balance equal to b-other. Panics on underflow since
// Balance is defined as nonnegative; callers must check Cmp first.
func (b Balance) Sub(other Balance) Balance {
	r := new(big.Int).Sub(b.bigOrZero(), other.bigOrZero())
	if r.Sign() < 0 {
		panic("types: balance underflow")
	}
	return Balance{v: r}
}

// Cmp compares b to other, returning -1, 0, or 1.
func (b Balance) Cmp(other Balance) int {
	return b.bigOrZero().Cmp(other.bigOrZero())
}

// String renders the decimal representation.
func (b Balance) String() string {
	return b.bigOrZero().String()
}

func (b Balance) bigOrZero() *big.Int {
	if b.v == nil {
		return new(big.Int)
	}
	return b.v
}
