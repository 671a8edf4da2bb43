// Package fixed holds the fixed-point arithmetic used by the multiply-accumulate
// kernels: signed lane elements, 128-bit accumulator lanes, narrowing and the
// static accumulator bound check.
package fixed

import "unsafe"

// Element is a signed fixed-point lane type the compute unit can load.
type Element interface {
	~int8 | ~int16 | ~int32
}

// Bits reports the bit width of T.
func Bits[T Element]() uint {
	var z T
	return uint(unsafe.Sizeof(z)) * 8
}

// MinOf returns the most negative value representable in a signed bits-wide integer.
func MinOf(bits uint) int64 {
	return -1 << (bits - 1)
}

// MaxOf returns the largest value representable in a signed bits-wide integer.
func MaxOf(bits uint) int64 {
	return 1<<(bits-1) - 1
}

// InRange reports whether v fits in T.
func InRange[T Element](v int64) bool {
	b := Bits[T]()
	return v >= MinOf(b) && v <= MaxOf(b)
}

// Widen copies src into dst as int64 lanes. dst must be at least len(src).
func Widen[T Element](dst []int64, src []T) {
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = int64(v)
	}
}

// ValidWidth reports whether bits is one of the lane widths the unit supports.
func ValidWidth(bits uint) bool {
	switch bits {
	case 8, 16, 32:
		return true
	default:
		return false
	}
}
