package fixed

import (
	"math/big"
	"math/bits"
)

// PhysicalBits is the storage width of an accumulator lane. Declared
// accumulator widths (48, 80) must not exceed it.
const PhysicalBits = 128

// Acc is one accumulator lane, a 128-bit two's complement integer.
// The zero value is zero.
type Acc struct {
	hi int64
	lo uint64
}

// AccOf returns v as an accumulator lane.
func AccOf(v int64) Acc {
	return Acc{hi: v >> 63, lo: uint64(v)}
}

// Add accumulates a sign-extended 64-bit product.
func (a *Acc) Add(p int64) {
	lo, carry := bits.Add64(a.lo, uint64(p), 0)
	a.hi += (p >> 63) + int64(carry)
	a.lo = lo
}

// AddAcc accumulates another lane.
func (a *Acc) AddAcc(b Acc) {
	lo, carry := bits.Add64(a.lo, b.lo, 0)
	a.hi += b.hi + int64(carry)
	a.lo = lo
}

// Reset zeroes the lane.
func (a *Acc) Reset() {
	*a = Acc{}
}

// Shr returns a arithmetically shifted right by s bits.
func (a Acc) Shr(s uint) Acc {
	switch {
	case s == 0:
		return a
	case s >= 128:
		return Acc{hi: a.hi >> 63, lo: uint64(a.hi >> 63)}
	case s >= 64:
		return Acc{hi: a.hi >> 63, lo: uint64(a.hi >> (s - 64))}
	default:
		return Acc{hi: a.hi >> s, lo: a.lo>>s | uint64(a.hi)<<(64-s)}
	}
}

// Sign returns -1, 0 or +1.
func (a Acc) Sign() int {
	switch {
	case a.hi < 0:
		return -1
	case a.hi == 0 && a.lo == 0:
		return 0
	default:
		return 1
	}
}

// Int64 returns the value and whether it fits in an int64 without loss.
func (a Acc) Int64() (int64, bool) {
	v := int64(a.lo)
	return v, a.hi == v>>63
}

// Low returns the low 64 bits of the lane.
func (a Acc) Low() uint64 {
	return a.lo
}

// Big returns the lane as an arbitrary-precision integer.
func (a Acc) Big() *big.Int {
	v := new(big.Int).SetInt64(a.hi)
	v.Lsh(v, 64)
	return v.Add(v, new(big.Int).SetUint64(a.lo))
}

// bitAcc returns 1<<n.
func bitAcc(n uint) Acc {
	if n >= 64 {
		return Acc{hi: 1 << (n - 64)}
	}
	return Acc{lo: 1 << n}
}

// MulAdd accumulates tile[l]*x into acc[l] for every lane of tile.
// Operands are widened lanes of at most 32 significant bits, so every
// product is exact in 64 bits.
func MulAdd(acc []Acc, tile []int64, x int64) {
	acc = acc[:len(tile)]
	for l, w := range tile {
		acc[l].Add(w * x)
	}
}

// Clear zeroes every lane.
func Clear(acc []Acc) {
	clear(acc)
}
