package kernel

import (
	"context"

	"github.com/samcharles93/blockmac/internal/blocking"
	"github.com/samcharles93/blockmac/internal/fixed"
	"github.com/samcharles93/blockmac/internal/stream"
)

// gemvStep is one tile multiply: the Lanes-wide run of column k for one
// accumulator, scaled by x[k].
type gemvStep struct {
	off int // tile offset in resident storage
	acc int // first lane in the accumulator file
	x   int // index of x[k] within the current input chunk
}

// GEMV computes y = A x for a resident M x K matrix A and a streamed
// vector x, K/InChunk sub-blocks per invocation.
type GEMV[I, O fixed.Element] struct {
	cfg    Config
	res    *Resident[I]
	narrow fixed.Narrowing

	steps    []gemvStep
	perChunk int

	acc  []fixed.Acc // Splits x M lanes
	ring [][]int64   // widened tiles, Prefetch ahead of use
	x    []I
	out  []O
}

// NewGEMV validates cfg, checks that every tile of res is one contiguous run
// and precomputes the tile schedule.
func NewGEMV[I, O fixed.Element](cfg Config, res *Resident[I]) (*GEMV[I, O], error) {
	if cfg.Kind != KindGEMV {
		return nil, configErr("kind", "%q is not a GEMV configuration", cfg.Kind)
	}
	if err := cfg.Validate(fixed.Bits[I](), fixed.Bits[O]()); err != nil {
		return nil, err
	}
	if err := checkResident(cfg, res); err != nil {
		return nil, err
	}

	splits := cfg.splits()
	splitOf := make([]int, cfg.K)
	for k := range splitOf {
		splitOf[k] = k / (cfg.K / splits)
	}

	accs := cfg.M / cfg.Lanes
	groups := accs / cfg.Unroll
	blocks := cfg.K / cfg.InChunk
	steps := make([]gemvStep, 0, cfg.K*accs)
	for b := range blocks {
		for g := range groups {
			for kk := range cfg.InChunk {
				k := b*cfg.InChunk + kk
				for u := range cfg.Unroll {
					a := g*cfg.Unroll + u
					off, err := blocking.ContiguousRun(res.Scheme(), a*cfg.Lanes, k, cfg.Lanes, true)
					if err != nil {
						return nil, &ConfigError{Field: "matrix", Reason: "tile is not a single load", Err: err}
					}
					steps = append(steps, gemvStep{
						off: off,
						acc: splitOf[k]*cfg.M + a*cfg.Lanes,
						x:   kk,
					})
				}
			}
		}
	}

	ring := make([][]int64, cfg.Prefetch+1)
	for i := range ring {
		ring[i] = make([]int64, cfg.Lanes)
	}
	return &GEMV[I, O]{
		cfg:      cfg,
		res:      res,
		narrow:   cfg.Narrowing(),
		steps:    steps,
		perChunk: len(steps) / blocks,
		acc:      make([]fixed.Acc, splits*cfg.M),
		ring:     ring,
		x:        make([]I, cfg.InChunk),
		out:      make([]O, cfg.M),
	}, nil
}

func (g *GEMV[I, O]) Config() Config { return g.cfg }

// Invoke runs one GEMV: reads K elements, writes M.
func (g *GEMV[I, O]) Invoke(ctx context.Context, in stream.Reader[I], out stream.Writer[O]) error {
	lanes := g.cfg.Lanes
	data := g.res.data
	ring := g.ring
	fixed.Clear(g.acc)

	filled := 0
	blocks := g.cfg.K / g.cfg.InChunk
	for b := range blocks {
		if err := readChunk(ctx, in, g.x, b); err != nil {
			return err
		}
		end := (b + 1) * g.perChunk
		for s := b * g.perChunk; s < end; s++ {
			for ; filled < len(g.steps) && filled <= s+g.cfg.Prefetch; filled++ {
				st := g.steps[filled]
				fixed.Widen(ring[filled%len(ring)], data[st.off:st.off+lanes])
			}
			st := g.steps[s]
			fixed.MulAdd(g.acc[st.acc:st.acc+lanes], ring[s%len(ring)], int64(g.x[st.x]))
		}
	}

	g.narrowOut()
	return writeChunks(ctx, out, g.out, g.cfg.OutChunk)
}

// narrowOut folds the split partial sums into the first accumulator file
// exactly, then narrows each lane once.
func (g *GEMV[I, O]) narrowOut() {
	m := g.cfg.M
	total := g.acc[:m]
	for s := 1; s < g.cfg.splits(); s++ {
		for i, a := range g.acc[s*m : (s+1)*m] {
			total[i].AddAcc(a)
		}
	}
	for i, a := range total {
		g.out[i] = fixed.NarrowTo[O](g.narrow, a)
	}
}
