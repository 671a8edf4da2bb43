package harness

import (
	"fmt"
	"math/rand"

	"github.com/samcharles93/blockmac/internal/blocking"
	"github.com/samcharles93/blockmac/internal/fixed"
	"github.com/samcharles93/blockmac/internal/kernel"
)

// Dataset is a generated test case: the row-major resident matrix, the
// streamed input in delivery order and the exact expected output.
type Dataset struct {
	Matrix   []int64
	Input    []int64
	Expected []int64
}

// GenOptions bounds the random values. A nil Min or Max leaves that end
// at the element limit.
type GenOptions struct {
	Seed int64
	Min  *int64
	Max  *int64
}

// Generate builds a dataset for cfg.Invocations invocations with expected
// outputs computed at arbitrary precision.
func Generate(cfg kernel.Config, inBits, outBits uint, opts GenOptions) (Dataset, error) {
	switch {
	case inBits == 32 && outBits == 32:
		return generate[int32, int32](cfg, opts)
	case inBits == 16 && outBits == 16:
		return generate[int16, int16](cfg, opts)
	case inBits == 16 && outBits == 32:
		return generate[int16, int32](cfg, opts)
	case inBits == 8 && outBits == 8:
		return generate[int8, int8](cfg, opts)
	case inBits == 8 && outBits == 16:
		return generate[int8, int16](cfg, opts)
	case inBits == 8 && outBits == 32:
		return generate[int8, int32](cfg, opts)
	default:
		return Dataset{}, fmt.Errorf("no kernel for int%d -> int%d", inBits, outBits)
	}
}

func generate[I, O fixed.Element](cfg kernel.Config, opts GenOptions) (Dataset, error) {
	if err := cfg.Validate(fixed.Bits[I](), fixed.Bits[O]()); err != nil {
		return Dataset{}, err
	}
	bits := fixed.Bits[I]()
	lo, hi := fixed.MinOf(bits), fixed.MaxOf(bits)
	if opts.Min != nil {
		lo = *opts.Min
	}
	if opts.Max != nil {
		hi = *opts.Max
	}
	if lo > hi || lo < fixed.MinOf(bits) || hi > fixed.MaxOf(bits) {
		return Dataset{}, fmt.Errorf("range [%d, %d] does not fit int%d", lo, hi, bits)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	draw := func(n int) []I {
		out := make([]I, n)
		for i := range out {
			out[i] = I(lo + rng.Int63n(hi-lo+1))
		}
		return out
	}

	a := draw(cfg.M * cfg.K)
	ds := Dataset{Matrix: FromElems(a)}
	for range cfg.Invocations {
		op := draw(cfg.InputLen())
		var want []O
		if cfg.Kind == kernel.KindGEMM {
			want = kernel.ReferenceGEMM[I, O](cfg, a, op)
			packed, err := blocking.Pack(cfg.InputScheme(), op)
			if err != nil {
				return Dataset{}, err
			}
			op = packed
		} else {
			want = kernel.ReferenceGEMV[I, O](cfg, a, op)
		}
		ds.Input = append(ds.Input, FromElems(op)...)
		ds.Expected = append(ds.Expected, FromElems(want)...)
	}
	return ds, nil
}
