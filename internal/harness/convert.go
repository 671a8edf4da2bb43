package harness

import (
	"fmt"

	"github.com/samcharles93/blockmac/internal/fixed"
)

// ToElems narrows vals to T, failing on the first value out of range.
func ToElems[T fixed.Element](vals []int64) ([]T, error) {
	out := make([]T, len(vals))
	for i, v := range vals {
		if !fixed.InRange[T](v) {
			return nil, fmt.Errorf("value %d: %d does not fit int%d", i, v, fixed.Bits[T]())
		}
		out[i] = T(v)
	}
	return out, nil
}

// FromElems widens vals to int64.
func FromElems[T fixed.Element](vals []T) []int64 {
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i] = int64(v)
	}
	return out
}
