package kernel

import (
	"math/big"

	"github.com/samcharles93/blockmac/internal/fixed"
)

// NarrowBig applies n to an arbitrary-precision sum.
func NarrowBig(n fixed.Narrowing, v *big.Int, bits uint) int64 {
	v = new(big.Int).Set(v)
	if n.Shift > 0 {
		if n.Rounding == fixed.RoundHalfUp {
			v.Add(v, new(big.Int).Lsh(big.NewInt(1), n.Shift-1))
		}
		v.Rsh(v, n.Shift)
	}
	if n.Overflow == fixed.Truncate {
		mod := new(big.Int).Lsh(big.NewInt(1), bits)
		v.Mod(v, mod)
		if v.Cmp(new(big.Int).Rsh(mod, 1)) >= 0 {
			v.Sub(v, mod)
		}
		return v.Int64()
	}
	lo, hi := big.NewInt(fixed.MinOf(bits)), big.NewInt(fixed.MaxOf(bits))
	if v.Cmp(lo) < 0 {
		return lo.Int64()
	}
	if v.Cmp(hi) > 0 {
		return hi.Int64()
	}
	return v.Int64()
}

// ReferenceGEMV computes one invocation of cfg's GEMV with arbitrary
// precision. a is the row-major M x K matrix, x the K-element vector. The
// split partial sums of the kernel add up to this one exact dot product.
func ReferenceGEMV[I, O fixed.Element](cfg Config, a, x []I) []O {
	n := cfg.Narrowing()
	bits := fixed.Bits[O]()
	out := make([]O, cfg.M)
	sum := new(big.Int)
	prod := new(big.Int)
	for m := range cfg.M {
		sum.SetInt64(0)
		for k := range cfg.K {
			prod.SetInt64(int64(a[m*cfg.K+k]))
			sum.Add(sum, prod.Mul(prod, big.NewInt(int64(x[k]))))
		}
		out[m] = O(NarrowBig(n, sum, bits))
	}
	return out
}

// ReferenceGEMM computes one invocation of cfg's GEMM with arbitrary
// precision. a is row-major M x K, b row-major K x N; the result is
// row-major M x N.
func ReferenceGEMM[I, O fixed.Element](cfg Config, a, b []I) []O {
	n := cfg.Narrowing()
	bits := fixed.Bits[O]()
	out := make([]O, cfg.M*cfg.N)
	sum := new(big.Int)
	prod := new(big.Int)
	for i := range cfg.M {
		for j := range cfg.N {
			sum.SetInt64(0)
			for k := range cfg.K {
				prod.SetInt64(int64(a[i*cfg.K+k]))
				sum.Add(sum, prod.Mul(prod, big.NewInt(int64(b[k*cfg.N+j]))))
			}
			out[i*cfg.N+j] = O(NarrowBig(n, sum, bits))
		}
	}
	return out
}
