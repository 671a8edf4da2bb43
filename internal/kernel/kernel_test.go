package kernel

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/samcharles93/blockmac/internal/blocking"
	"github.com/samcharles93/blockmac/internal/fixed"
	"github.com/samcharles93/blockmac/internal/stream"
)

func randVals[T fixed.Element](rng *rand.Rand, n int) []T {
	bits := fixed.Bits[T]()
	lo, hi := fixed.MinOf(bits), fixed.MaxOf(bits)
	out := make([]T, n)
	for i := range out {
		out[i] = T(lo + rng.Int63n(hi-lo+1))
	}
	return out
}

func fill[T fixed.Element](n int, v T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// invoke runs cfg.Invocations invocations of a kernel built over the
// row-major matrix a, streaming in, and returns everything written.
func invoke[I, O fixed.Element](t *testing.T, cfg Config, a, in []I) []O {
	t.Helper()
	res, err := PackResident(mustScheme(t, cfg), a)
	if err != nil {
		t.Fatalf("pack resident: %v", err)
	}
	k, err := New[I, O](cfg, res)
	if err != nil {
		t.Fatalf("new kernel: %v", err)
	}
	ctx := context.Background()
	r := stream.NewSliceReader(in)
	w := stream.NewCollector[O](cfg.OutChunk)
	for i := range cfg.Invocations {
		if err := k.Invoke(ctx, r, w); err != nil {
			t.Fatalf("invocation %d: %v", i, err)
		}
	}
	if err := stream.ExpectEOF[I](ctx, r, cfg.InChunk); err != nil {
		t.Fatalf("trailing input: %v", err)
	}
	return w.Values()
}

func mustScheme(t *testing.T, cfg Config) blocking.Scheme {
	t.Helper()
	s, err := cfg.MatrixScheme()
	if err != nil {
		t.Fatalf("scheme: %v", err)
	}
	return s
}

func equalVals[T fixed.Element](t *testing.T, got, want []T) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("value %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func gemvConfig() Config {
	return Config{
		Kind: KindGEMV, M: 16, K: 32,
		InChunk: 8, OutChunk: 8,
		Lanes: 8, Unroll: 2, Q: 2,
		AccBits: 80, Invocations: 1,
	}
}

func TestGEMVAllOnes(t *testing.T) {
	t.Parallel()
	cfg := gemvConfig()
	got := invoke[int32, int32](t, cfg, fill[int32](cfg.M*cfg.K, 1), fill[int32](cfg.K, 1))
	equalVals(t, got, fill[int32](cfg.M, 32))
}

func TestGEMVQuantizedSplit(t *testing.T) {
	t.Parallel()
	v, err := Lookup("gemv-i8-mac8")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	cfg := v.Config
	cfg.Invocations = 1
	got := invoke[int8, int16](t, cfg, fill[int8](cfg.M*cfg.K, 1), fill[int8](cfg.K, 1))
	equalVals(t, got, fill[int16](cfg.M, 16))
}

func TestGEMVSplitNarrowsOnce(t *testing.T) {
	t.Parallel()
	// The full sum is 16*127*127 = 258064.
	v, _ := Lookup("gemv-i8-mac8")
	cfg := v.Config
	cfg.Invocations = 1
	a := fill[int8](cfg.M*cfg.K, 127)
	x := fill[int8](cfg.K, 127)
	equalVals(t, invoke[int8, int16](t, cfg, a, x), fill[int16](cfg.M, 32767))

	cfg.Overflow = fixed.Truncate
	// 258064 mod 65536 = 61456 -> -4080.
	equalVals(t, invoke[int8, int16](t, cfg, a, x), fill[int16](cfg.M, -4080))
}

func TestGEMVSplitShiftKeepsCarry(t *testing.T) {
	t.Parallel()
	v, _ := Lookup("gemv-i8-mac8")
	half := v.Config.K / v.Config.Splits
	// Row m holds m%half+1 ones in each half, so both partial sums are odd
	// when m is even and the exact dot product is twice that.
	cases := []struct {
		name     string
		shift    uint
		rounding fixed.Rounding
		want     func(dot int64) int64
	}{
		{"floor-1", 1, fixed.RoundFloor, func(d int64) int64 { return d >> 1 }},
		{"floor-2", 2, fixed.RoundFloor, func(d int64) int64 { return d >> 2 }},
		{"half-up-2", 2, fixed.RoundHalfUp, func(d int64) int64 { return (d + 2) >> 2 }},
		{"half-up-3", 3, fixed.RoundHalfUp, func(d int64) int64 { return (d + 4) >> 3 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := v.Config
			cfg.Invocations = 1
			cfg.Shift = tc.shift
			cfg.Rounding = tc.rounding
			a := make([]int8, cfg.M*cfg.K)
			want := make([]int16, cfg.M)
			for m := range cfg.M {
				ones := m%half + 1
				for j := range ones {
					a[m*cfg.K+j] = 1
					a[m*cfg.K+half+j] = 1
				}
				want[m] = int16(tc.want(int64(2 * ones)))
			}
			got := invoke[int8, int16](t, cfg, a, fill[int8](cfg.K, 1))
			equalVals(t, got, want)
			equalVals(t, got, ReferenceGEMV[int8, int16](cfg, a, fill[int8](cfg.K, 1)))
		})
	}
}

func TestGEMVShift(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		shift    uint
		rounding fixed.Rounding
		want     int32
	}{
		{"none", 0, fixed.RoundFloor, 32},
		{"floor-2", 2, fixed.RoundFloor, 8},
		{"floor-6", 6, fixed.RoundFloor, 0},
		{"half-up-6", 6, fixed.RoundHalfUp, 1},
		{"half-up-7", 7, fixed.RoundHalfUp, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := gemvConfig()
			cfg.Shift = tc.shift
			cfg.Rounding = tc.rounding
			got := invoke[int32, int32](t, cfg, fill[int32](cfg.M*cfg.K, 1), fill[int32](cfg.K, 1))
			equalVals(t, got, fill[int32](cfg.M, tc.want))
		})
	}
}

func checkVariant[I, O fixed.Element](t *testing.T, cfg Config) {
	rng := rand.New(rand.NewSource(int64(cfg.M*1000 + cfg.K)))
	modes := []fixed.Narrowing{
		{},
		{Shift: 7, Rounding: fixed.RoundHalfUp},
		{Shift: 3, Overflow: fixed.Truncate},
	}
	for _, n := range modes {
		cfg.Shift, cfg.Rounding, cfg.Overflow = n.Shift, n.Rounding, n.Overflow
		cfg.Invocations = 3
		a := randVals[I](rng, cfg.M*cfg.K)
		if cfg.Kind == KindGEMM {
			var in []I
			var want []O
			for range cfg.Invocations {
				b := randVals[I](rng, cfg.K*cfg.N)
				packed, err := blocking.Pack(cfg.InputScheme(), b)
				if err != nil {
					t.Fatalf("pack input: %v", err)
				}
				in = append(in, packed...)
				want = append(want, ReferenceGEMM[I, O](cfg, a, b)...)
			}
			equalVals(t, invoke[I, O](t, cfg, a, in), want)
			continue
		}
		in := randVals[I](rng, cfg.K*cfg.Invocations)
		var want []O
		for i := range cfg.Invocations {
			want = append(want, ReferenceGEMV[I, O](cfg, a, in[i*cfg.K:(i+1)*cfg.K])...)
		}
		equalVals(t, invoke[I, O](t, cfg, a, in), want)
	}
}

func TestVariantsMatchReference(t *testing.T) {
	t.Parallel()
	checks := map[string]func(*testing.T, Config){
		"gemv-i32-lmac8": checkVariant[int32, int32],
		"gemv-i32-lmac4": checkVariant[int32, int32],
		"gemv-i16-mac16": checkVariant[int16, int16],
		"gemv-i8-mac16":  checkVariant[int8, int8],
		"gemv-i8-mac8":   checkVariant[int8, int16],
		"gemm-i32-mmul":  checkVariant[int32, int32],
	}
	for _, v := range Variants() {
		check, ok := checks[v.Name]
		if !ok {
			t.Fatalf("variant %s has no test", v.Name)
		}
		t.Run(v.Name, func(t *testing.T) {
			t.Parallel()
			if err := v.Validate(); err != nil {
				t.Fatalf("validate: %v", err)
			}
			check(t, v.Config)
		})
	}
}

func TestGEMVBlockingInvariance(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	base := gemvConfig()
	base.Invocations = 2
	a := randVals[int16](rng, base.M*base.K)
	x := randVals[int16](rng, base.K*base.Invocations)

	layouts := []struct {
		scheme                              string
		q, lanes, unroll, inChunk, prefetch int
		tileM, tileK                        int
	}{
		{"", 1, 8, 2, 8, 0, 0, 0},
		{"", 2, 8, 2, 8, 0, 0, 0},
		{"", 4, 4, 4, 4, 1, 0, 0},
		{"", 8, 16, 1, 32, 3, 0, 0},
		{"", 32, 2, 4, 16, 0, 0, 0},
		{"", 16, 1, 1, 2, 5, 0, 0},
		{"tiled-col", 1, 8, 2, 8, 1, 8, 4},
		{"tiled-col", 1, 4, 2, 16, 0, 16, 32},
		{"tiled", 1, 8, 1, 8, 2, 8, 1},
		{"row-major", 1, 1, 4, 8, 2, 0, 0},
	}
	var first []int16
	for _, l := range layouts {
		cfg := base
		cfg.Scheme, cfg.TileM, cfg.TileK = l.scheme, l.tileM, l.tileK
		cfg.Q, cfg.Lanes, cfg.Unroll, cfg.InChunk, cfg.Prefetch = l.q, l.lanes, l.unroll, l.inChunk, l.prefetch
		cfg.AccBits = 48
		got := invoke[int16, int16](t, cfg, a, x)
		if first == nil {
			first = got
			continue
		}
		equalVals(t, got, first)
	}
}

func TestGEMVRowMajorResident(t *testing.T) {
	t.Parallel()
	cfg := gemvConfig()
	res, err := PackResident(blocking.RowMajor{R: cfg.M, C: cfg.K}, fill[int32](cfg.M*cfg.K, 1))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	_, err = NewGEMV[int32, int32](cfg, res)
	if !errors.Is(err, ErrConfig) || !errors.Is(err, blocking.ErrNotContiguous) {
		t.Fatalf("got %v want ErrConfig wrapping ErrNotContiguous", err)
	}

	// Single-lane tiles are always one load.
	cfg.Lanes, cfg.Unroll, cfg.OutChunk = 1, 4, 4
	if _, err := NewGEMV[int32, int32](cfg, res); err != nil {
		t.Fatalf("single lane: %v", err)
	}
}

func TestGEMVConfiguredSchemeMustFeedLanes(t *testing.T) {
	t.Parallel()
	cfg := gemvConfig()
	cfg.Scheme, cfg.TileM, cfg.TileK = "tiled", 4, 4
	if err := cfg.Validate(32, 32); err != nil {
		t.Fatalf("validate: %v", err)
	}
	res, err := PackResident(mustScheme(t, cfg), fill[int32](cfg.M*cfg.K, 1))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if _, err := NewGEMV[int32, int32](cfg, res); !errors.Is(err, blocking.ErrNotContiguous) {
		t.Fatalf("got %v want ErrNotContiguous", err)
	}
}

func TestGEMVUnderrun(t *testing.T) {
	t.Parallel()
	cfg := gemvConfig()
	res, err := PackResident(mustScheme(t, cfg), fill[int32](cfg.M*cfg.K, 1))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	k, err := NewGEMV[int32, int32](cfg, res)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	out := stream.NewCollector[int32](cfg.OutChunk)

	cases := []struct {
		name string
		n    int
	}{
		{"empty", 0},
		{"missing-chunk", cfg.K - cfg.InChunk},
		{"partial-chunk", cfg.K - 3},
	}
	for _, tc := range cases {
		err := k.Invoke(ctx, stream.NewSliceReader(fill[int32](tc.n, 1)), out)
		if !errors.Is(err, stream.ErrUnderrun) {
			t.Fatalf("%s: got %v want ErrUnderrun", tc.name, err)
		}
	}
	if len(out.Values()) != 0 {
		t.Fatalf("underrun produced %d outputs", len(out.Values()))
	}
}

func TestGEMMAllOnes(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Kind: KindGEMM, M: 4, K: 6, N: 4,
		InChunk: 4, OutChunk: 8,
		TileM: 2, TileK: 2, TileN: 2,
		AccBits: 80, Invocations: 1,
	}
	got := invoke[int32, int32](t, cfg, fill[int32](cfg.M*cfg.K, 1), fill[int32](cfg.K*cfg.N, 1))
	equalVals(t, got, fill[int32](cfg.M*cfg.N, 6))
}

func TestGEMMTileShapes(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(11))
	shapes := []Config{
		{M: 8, K: 8, N: 8, TileM: 2, TileK: 4, TileN: 2, InChunk: 8, OutChunk: 8},
		{M: 8, K: 12, N: 16, TileM: 4, TileK: 3, TileN: 4, InChunk: 12, OutChunk: 16},
		{M: 2, K: 1, N: 2, TileM: 1, TileK: 1, TileN: 1, InChunk: 1, OutChunk: 2},
	}
	for _, cfg := range shapes {
		cfg.Kind, cfg.AccBits, cfg.Invocations = KindGEMM, 48, 2
		a := randVals[int8](rng, cfg.M*cfg.K)
		var in []int8
		var want []int16
		for range cfg.Invocations {
			b := randVals[int8](rng, cfg.K*cfg.N)
			packed, err := blocking.Pack(cfg.InputScheme(), b)
			if err != nil {
				t.Fatalf("pack: %v", err)
			}
			in = append(in, packed...)
			want = append(want, ReferenceGEMM[int8, int16](cfg, a, b)...)
		}
		equalVals(t, invoke[int8, int16](t, cfg, a, in), want)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	gemm := Config{
		Kind: KindGEMM, M: 4, K: 4, N: 4,
		InChunk: 4, OutChunk: 4,
		TileM: 2, TileK: 2, TileN: 2,
		AccBits: 80, Invocations: 1,
	}
	cases := []struct {
		name  string
		edit  func(c *Config)
		base  Config
		field string
		want  error
	}{
		{"k-chunk", func(c *Config) { c.InChunk = 5 }, gemvConfig(), "in_chunk", nil},
		{"m-lanes", func(c *Config) { c.Lanes = 5 }, gemvConfig(), "lanes", nil},
		{"unroll-3", func(c *Config) { c.Unroll = 3 }, gemvConfig(), "unroll", nil},
		{"unroll-groups", func(c *Config) { c.Lanes, c.Unroll = 8, 4 }, gemvConfig(), "unroll", nil},
		{"out-chunk", func(c *Config) { c.OutChunk = 5 }, gemvConfig(), "out_chunk", nil},
		{"q", func(c *Config) { c.Q = 3 }, gemvConfig(), "q", nil},
		{"splits", func(c *Config) { c.Splits = 3 }, gemvConfig(), "splits", nil},
		{"acc-width", func(c *Config) { c.AccBits = 64 }, gemvConfig(), "acc_bits", nil},
		{"acc-bound", func(c *Config) { c.AccBits = 48 }, gemvConfig(), "acc_bits", fixed.ErrAccumulatorOverflow},
		{"shift", func(c *Config) { c.Shift = 80 }, gemvConfig(), "shift", nil},
		{"invocations", func(c *Config) { c.Invocations = 0 }, gemvConfig(), "invocations", nil},
		{"kind", func(c *Config) { c.Kind = "conv" }, gemvConfig(), "kind", nil},
		{"odd-tiles", func(c *Config) { c.TileM = 4 }, gemm, "tiles", nil},
		{"gemm-splits", func(c *Config) { c.Splits = 2 }, gemm, "splits", nil},
		{"gemm-out-chunk", func(c *Config) { c.OutChunk = 3 }, gemm, "out_chunk", nil},
		{"scheme-unknown", func(c *Config) { c.Scheme = "diagonal" }, gemvConfig(), "scheme", blocking.ErrShape},
		{"scheme-tiles", func(c *Config) { c.Scheme, c.TileM, c.TileK = "tiled-col", 5, 4 }, gemvConfig(), "scheme", blocking.ErrShape},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := tc.base
			tc.edit(&cfg)
			err := cfg.Validate(32, 32)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("got %v want *ConfigError", err)
			}
			if ce.Field != tc.field {
				t.Fatalf("field: got %q want %q", ce.Field, tc.field)
			}
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("%v does not wrap ErrConfig", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("%v does not wrap %v", err, tc.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	v, err := Lookup("gemv-i32-lmac8")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if v.Config.Variant != v.Name {
		t.Fatalf("config variant: got %q want %q", v.Config.Variant, v.Name)
	}
	if v.Config.Invocations != 20 {
		t.Fatalf("invocations: got %d want 20", v.Config.Invocations)
	}
	if _, err := Lookup("gemv-f32"); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("unknown: got %v want ErrUnknownVariant", err)
	}
}

func TestResident(t *testing.T) {
	t.Parallel()
	s := blocking.Interleaved{R: 4, C: 4, Q: 2}
	rm := make([]int16, 16)
	for i := range rm {
		rm[i] = int16(i)
	}
	res, err := PackResident(s, rm)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if got := res.data[s.Offset(2, 3)]; got != 11 {
		t.Fatalf("(2,3): got %d want 11", got)
	}
	back, err := blocking.Unpack(res.Scheme(), res.data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	equalVals(t, back, rm)
	if _, err := NewResident(s, rm[:15]); !errors.Is(err, blocking.ErrShape) {
		t.Fatalf("short buffer: got %v want ErrShape", err)
	}
}
