package kernel

import (
	"fmt"
	"strings"

	"github.com/samcharles93/blockmac/internal/blocking"
	"github.com/samcharles93/blockmac/internal/fixed"
)

// Kind selects the kernel algorithm.
type Kind string

const (
	KindGEMV Kind = "gemv"
	KindGEMM Kind = "gemm"
)

// Config is the static configuration of one kernel instance. It is validated
// once before the first invocation and never changes afterwards.
type Config struct {
	Variant string `json:"variant"`
	Kind    Kind   `json:"kind"`

	// GEMV: y[M] = A[M][K] x[K]. GEMM: C[M][N] = A[M][K] B[K][N].
	M int `json:"m"`
	K int `json:"k"`
	N int `json:"n,omitempty"`

	InChunk  int `json:"in_chunk"`
	OutChunk int `json:"out_chunk"`

	// Scheme names the resident matrix layout (see blocking.New). Empty
	// selects interleaved for GEMV and tiled for GEMM. Tiled layouts use
	// TileM x TileK tiles.
	Scheme string `json:"scheme,omitempty"`

	// GEMV lane layout.
	Lanes  int `json:"lanes,omitempty"`
	Unroll int `json:"unroll,omitempty"`
	Q      int `json:"q,omitempty"`

	// GEMM tile shape.
	TileM int `json:"tile_m,omitempty"`
	TileK int `json:"tile_k,omitempty"`
	TileN int `json:"tile_n,omitempty"`

	// Splits > 1 reduces K in independent partial sums that are added
	// exactly before the one narrowing.
	Splits   int `json:"splits,omitempty"`
	Prefetch int `json:"prefetch,omitempty"`

	Shift    uint           `json:"shift"`
	Rounding fixed.Rounding `json:"rounding"`
	Overflow fixed.Overflow `json:"overflow"`
	AccBits  uint           `json:"acc_bits"`

	Invocations int `json:"invocations"`
}

// Narrowing returns the output conversion described by c.
func (c Config) Narrowing() fixed.Narrowing {
	return fixed.Narrowing{Shift: c.Shift, Rounding: c.Rounding, Overflow: c.Overflow}
}

// InputLen is the number of streamed elements consumed per invocation.
func (c Config) InputLen() int {
	if c.Kind == KindGEMM {
		return c.K * c.N
	}
	return c.K
}

// OutputLen is the number of elements produced per invocation.
func (c Config) OutputLen() int {
	if c.Kind == KindGEMM {
		return c.M * c.N
	}
	return c.M
}

// SchemeParams is the configuration form of the resident matrix layout.
func (c Config) SchemeParams() blocking.Params {
	kind := strings.ToLower(c.Scheme)
	if kind == "" {
		kind = "interleaved"
		if c.Kind == KindGEMM {
			kind = "tiled"
		}
	}
	return blocking.Params{Kind: kind, Q: c.Q, TileR: c.TileM, TileC: c.TileK}
}

// MatrixScheme builds the blocked layout the kernel expects for the
// resident M x K matrix.
func (c Config) MatrixScheme() (blocking.Scheme, error) {
	return blocking.New(c.SchemeParams(), c.M, c.K)
}

// InputScheme is the order in which one invocation's streamed operand is
// delivered. GEMV vectors are streamed in index order.
func (c Config) InputScheme() blocking.Scheme {
	if c.Kind == KindGEMM {
		return blocking.Tiled{R: c.K, C: c.N, TileR: c.TileK, TileC: c.TileN}
	}
	return blocking.RowMajor{R: 1, C: c.K}
}

func (c Config) splits() int {
	if c.Splits < 1 {
		return 1
	}
	return c.Splits
}

// Validate checks c for inBits-wide operands and outBits-wide results.
func (c Config) Validate(inBits, outBits uint) error {
	if !fixed.ValidWidth(inBits) {
		return configErr("in_bits", "unsupported operand width %d", inBits)
	}
	if !fixed.ValidWidth(outBits) {
		return configErr("out_bits", "unsupported output width %d", outBits)
	}
	if c.M <= 0 || c.K <= 0 {
		return configErr("shape", "M=%d K=%d must be positive", c.M, c.K)
	}
	if c.InChunk <= 0 {
		return configErr("in_chunk", "must be positive, got %d", c.InChunk)
	}
	if c.OutChunk <= 0 {
		return configErr("out_chunk", "must be positive, got %d", c.OutChunk)
	}
	if c.Prefetch < 0 {
		return configErr("prefetch", "must not be negative, got %d", c.Prefetch)
	}
	if c.Invocations <= 0 {
		return configErr("invocations", "must be positive, got %d", c.Invocations)
	}
	switch c.AccBits {
	case 48, 80:
	default:
		return configErr("acc_bits", "declared accumulator width must be 48 or 80, got %d", c.AccBits)
	}
	if c.Shift >= c.AccBits {
		return configErr("shift", "%d discards the whole %d-bit accumulator", c.Shift, c.AccBits)
	}

	var err error
	switch c.Kind {
	case KindGEMV:
		err = c.validateGEMV(inBits)
	case KindGEMM:
		err = c.validateGEMM(inBits)
	default:
		err = configErr("kind", "unknown kernel kind %q", c.Kind)
	}
	if err != nil {
		return err
	}
	if _, err := c.MatrixScheme(); err != nil {
		return &ConfigError{Field: "scheme", Reason: fmt.Sprintf("%q for %dx%d", c.SchemeParams().Kind, c.M, c.K), Err: err}
	}
	return nil
}

func (c Config) validateGEMV(inBits uint) error {
	if c.K%c.InChunk != 0 {
		return configErr("in_chunk", "K=%d is not a multiple of %d", c.K, c.InChunk)
	}
	if c.Lanes <= 0 || c.M%c.Lanes != 0 {
		return configErr("lanes", "M=%d is not a multiple of %d lanes", c.M, c.Lanes)
	}
	switch c.Unroll {
	case 1, 2, 4:
	default:
		return configErr("unroll", "must be 1, 2 or 4, got %d", c.Unroll)
	}
	if (c.M/c.Lanes)%c.Unroll != 0 {
		return configErr("unroll", "%d accumulators do not group by %d", c.M/c.Lanes, c.Unroll)
	}
	if c.M%c.OutChunk != 0 {
		return configErr("out_chunk", "M=%d is not a multiple of %d", c.M, c.OutChunk)
	}
	if c.SchemeParams().Kind == "interleaved" && (c.Q <= 0 || c.K%c.Q != 0) {
		return configErr("q", "K=%d does not split into %d groups", c.K, c.Q)
	}
	s := c.splits()
	if c.K%s != 0 {
		return configErr("splits", "K=%d does not split into %d partial sums", c.K, s)
	}
	// Split sums are added in the accumulator, so the bound covers all of K.
	if err := fixed.CheckBound(c.K, inBits, inBits, c.AccBits); err != nil {
		return &ConfigError{Field: "acc_bits", Reason: fmt.Sprintf("%d-term reduction", c.K), Err: err}
	}
	return nil
}

func (c Config) validateGEMM(inBits uint) error {
	if c.N <= 0 {
		return configErr("shape", "N=%d must be positive", c.N)
	}
	if c.splits() != 1 {
		return configErr("splits", "split reduction is GEMV only")
	}
	if c.TileM <= 0 || c.TileK <= 0 || c.TileN <= 0 {
		return configErr("tiles", "%dx%dx%d must be positive", c.TileM, c.TileK, c.TileN)
	}
	if c.M%c.TileM != 0 || c.K%c.TileK != 0 || c.N%c.TileN != 0 {
		return configErr("tiles", "%dx%dx%d does not divide %dx%dx%d", c.TileM, c.TileK, c.TileN, c.M, c.K, c.N)
	}
	if (c.M/c.TileM)%2 != 0 || (c.N/c.TileN)%2 != 0 {
		return configErr("tiles", "2x2 micro-kernel needs an even number of row and column tiles")
	}
	if (c.K*c.N)%c.InChunk != 0 {
		return configErr("in_chunk", "%d streamed elements are not a multiple of %d", c.K*c.N, c.InChunk)
	}
	if (2*c.TileM*c.N)%c.OutChunk != 0 {
		return configErr("out_chunk", "tile row pair of %d elements is not a multiple of %d", 2*c.TileM*c.N, c.OutChunk)
	}
	if err := fixed.CheckBound(c.K, inBits, inBits, c.AccBits); err != nil {
		return &ConfigError{Field: "acc_bits", Reason: fmt.Sprintf("%d-term reduction", c.K), Err: err}
	}
	return nil
}
