package fixed

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrAccumulatorOverflow means the worst-case reduction does not fit the
	// declared accumulator width.
	ErrAccumulatorOverflow = errors.New("accumulator overflow")
	// ErrAccumulatorWidth means the declared width is not storable.
	ErrAccumulatorWidth = errors.New("invalid accumulator width")
)

// WorstCaseSum returns the largest magnitude a k-term dot product of signed
// aBits and bBits operands can reach: k * 2^(aBits-1) * 2^(bBits-1).
func WorstCaseSum(k int, aBits, bBits uint) *big.Int {
	v := big.NewInt(int64(k))
	return v.Lsh(v, aBits+bBits-2)
}

// AccMax returns the largest positive value of a signed accBits-wide accumulator.
func AccMax(accBits uint) *big.Int {
	v := big.NewInt(1)
	v.Lsh(v, accBits-1)
	return v.Sub(v, big.NewInt(1))
}

// CheckMagnitude fails when worst exceeds the accumulator's representable range.
func CheckMagnitude(worst *big.Int, accBits uint) error {
	if accBits < 2 || accBits > PhysicalBits {
		return fmt.Errorf("%w: %d bits", ErrAccumulatorWidth, accBits)
	}
	if worst.Cmp(AccMax(accBits)) > 0 {
		return fmt.Errorf("%w: worst case %s exceeds %d-bit range", ErrAccumulatorOverflow, worst, accBits)
	}
	return nil
}

// CheckBound verifies that a k-term reduction of aBits x bBits products
// cannot overflow an accBits accumulator.
func CheckBound(k int, aBits, bBits, accBits uint) error {
	if k <= 0 {
		return fmt.Errorf("%w: reduction length %d", ErrAccumulatorOverflow, k)
	}
	return CheckMagnitude(WorstCaseSum(k, aBits, bBits), accBits)
}

// GuardBits returns how many accumulator bits are left over after the
// worst-case k-term reduction. Output shifts beyond accBits-1 discard every
// significant bit.
func GuardBits(k int, aBits, bBits, accBits uint) int {
	return int(accBits) - 1 - WorstCaseSum(k, aBits, bBits).BitLen()
}
