package kernel

import (
	"fmt"
	"slices"
)

// Variant is a named kernel build: fixed element widths plus the static
// configuration it ships with.
type Variant struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InBits      uint   `json:"in_bits"`
	OutBits     uint   `json:"out_bits"`
	Config      Config `json:"config"`
}

const defaultInvocations = 20

var variants = []Variant{
	{
		Name:        "gemv-i32-lmac8",
		Description: "int32 GEMV, 8-lane 80-bit accumulators, unroll 2, Q=2 interleave",
		InBits:      32,
		OutBits:     32,
		Config: Config{
			Kind: KindGEMV, M: 16, K: 16,
			InChunk: 8, OutChunk: 8,
			Lanes: 8, Unroll: 2, Q: 2,
			AccBits: 80, Invocations: defaultInvocations,
		},
	},
	{
		Name:        "gemv-i32-lmac4",
		Description: "int32 GEMV, 4-lane 80-bit accumulators, unroll 4, tile prefetch",
		InBits:      32,
		OutBits:     32,
		Config: Config{
			Kind: KindGEMV, M: 16, K: 16,
			InChunk: 8, OutChunk: 4,
			Lanes: 4, Unroll: 4, Q: 2, Prefetch: 2,
			AccBits: 80, Invocations: defaultInvocations,
		},
	},
	{
		Name:        "gemv-i16-mac16",
		Description: "int16 GEMV, 16-lane 48-bit accumulators",
		InBits:      16,
		OutBits:     16,
		Config: Config{
			Kind: KindGEMV, M: 16, K: 16,
			InChunk: 16, OutChunk: 16,
			Lanes: 16, Unroll: 1, Q: 1,
			AccBits: 48, Invocations: defaultInvocations,
		},
	},
	{
		Name:        "gemv-i8-mac16",
		Description: "int8 GEMV, 16-lane 48-bit accumulators",
		InBits:      8,
		OutBits:     8,
		Config: Config{
			Kind: KindGEMV, M: 16, K: 32,
			InChunk: 32, OutChunk: 16,
			Lanes: 16, Unroll: 1, Q: 1,
			AccBits: 48, Invocations: defaultInvocations,
		},
	},
	{
		Name:        "gemv-i8-mac8",
		Description: "quantized int8 GEMV, two partial sums added exactly and narrowed into int16",
		InBits:      8,
		OutBits:     16,
		Config: Config{
			Kind: KindGEMV, M: 16, K: 16,
			InChunk: 16, OutChunk: 8,
			Lanes: 8, Unroll: 2, Q: 1, Splits: 2,
			AccBits: 48, Invocations: defaultInvocations,
		},
	},
	{
		Name:        "gemm-i32-mmul",
		Description: "int32 GEMM, 2x2 micro-kernel over 2x2x2 tiles",
		InBits:      32,
		OutBits:     32,
		Config: Config{
			Kind: KindGEMM, M: 16, K: 32, N: 16,
			InChunk: 4, OutChunk: 4,
			TileM: 2, TileK: 2, TileN: 2,
			AccBits: 80, Invocations: 4,
		},
	},
}

func init() {
	for i := range variants {
		variants[i].Config.Variant = variants[i].Name
	}
}

// Variants returns the registered variants in registration order.
func Variants() []Variant {
	return slices.Clone(variants)
}

// Lookup returns the named variant.
func Lookup(name string) (Variant, error) {
	for _, v := range variants {
		if v.Name == name {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

// Validate checks the variant's configuration against its element widths.
func (v Variant) Validate() error {
	return v.Config.Validate(v.InBits, v.OutBits)
}
