package kernel

import (
	"context"

	"github.com/samcharles93/blockmac/internal/blocking"
	"github.com/samcharles93/blockmac/internal/fixed"
	"github.com/samcharles93/blockmac/internal/stream"
)

// GEMM computes C = A B for a resident M x K matrix A and a streamed K x N
// matrix B delivered in TileK x TileN tile order. Each step of the 2x2
// micro-kernel multiplies two A tiles against two B tiles into four tile
// accumulators.
type GEMM[I, O fixed.Element] struct {
	cfg    Config
	res    *Resident[I]
	narrow fixed.Narrowing

	mt, kt, nt int
	aOff       []int // [mt][kt]
	bOff       []int // [kt][nt]

	window []I
	at     [2][]int64
	bt     [2][]int64
	acc    [4][]fixed.Acc // C00, C01, C10, C11
	rows   []O            // 2*TileM output rows
}

func NewGEMM[I, O fixed.Element](cfg Config, res *Resident[I]) (*GEMM[I, O], error) {
	if cfg.Kind != KindGEMM {
		return nil, configErr("kind", "%q is not a GEMM configuration", cfg.Kind)
	}
	if err := cfg.Validate(fixed.Bits[I](), fixed.Bits[O]()); err != nil {
		return nil, err
	}
	if err := checkResident(cfg, res); err != nil {
		return nil, err
	}

	mt, kt, nt := cfg.M/cfg.TileM, cfg.K/cfg.TileK, cfg.N/cfg.TileN
	aOff := make([]int, mt*kt)
	for i := range mt {
		for k := range kt {
			off, err := blocking.TileRun(res.Scheme(), i*cfg.TileM, k*cfg.TileK, cfg.TileM, cfg.TileK)
			if err != nil {
				return nil, &ConfigError{Field: "matrix", Reason: "A tile is not a single load", Err: err}
			}
			aOff[i*kt+k] = off
		}
	}
	bScheme := cfg.InputScheme()
	bOff := make([]int, kt*nt)
	for k := range kt {
		for j := range nt {
			off, err := blocking.TileRun(bScheme, k*cfg.TileK, j*cfg.TileN, cfg.TileK, cfg.TileN)
			if err != nil {
				return nil, &ConfigError{Field: "input", Reason: "B tile is not a single load", Err: err}
			}
			bOff[k*nt+j] = off
		}
	}

	g := &GEMM[I, O]{
		cfg:    cfg,
		res:    res,
		narrow: cfg.Narrowing(),
		mt:     mt,
		kt:     kt,
		nt:     nt,
		aOff:   aOff,
		bOff:   bOff,
		window: make([]I, cfg.K*cfg.N),
		rows:   make([]O, 2*cfg.TileM*cfg.N),
	}
	for i := range 2 {
		g.at[i] = make([]int64, cfg.TileM*cfg.TileK)
		g.bt[i] = make([]int64, cfg.TileK*cfg.TileN)
	}
	for i := range g.acc {
		g.acc[i] = make([]fixed.Acc, cfg.TileM*cfg.TileN)
	}
	return g, nil
}

func (g *GEMM[I, O]) Config() Config { return g.cfg }

// Invoke runs one GEMM: reads K*N elements, writes M*N in row-major order.
func (g *GEMM[I, O]) Invoke(ctx context.Context, in stream.Reader[I], out stream.Writer[O]) error {
	ch := g.cfg.InChunk
	for c := 0; c*ch < len(g.window); c++ {
		if err := readChunk(ctx, in, g.window[c*ch:(c+1)*ch], c); err != nil {
			return err
		}
	}

	tm, tk, tn := g.cfg.TileM, g.cfg.TileK, g.cfg.TileN
	a := g.res.data
	for i := 0; i < g.mt; i += 2 {
		for j := 0; j < g.nt; j += 2 {
			for q := range g.acc {
				fixed.Clear(g.acc[q])
			}
			for k := range g.kt {
				a0 := g.aOff[i*g.kt+k]
				a1 := g.aOff[(i+1)*g.kt+k]
				b0 := g.bOff[k*g.nt+j]
				b1 := g.bOff[k*g.nt+j+1]
				fixed.Widen(g.at[0], a[a0:a0+tm*tk])
				fixed.Widen(g.at[1], a[a1:a1+tm*tk])
				fixed.Widen(g.bt[0], g.window[b0:b0+tk*tn])
				fixed.Widen(g.bt[1], g.window[b1:b1+tk*tn])
				mmul(g.acc[0], g.at[0], g.bt[0], tm, tk, tn)
				mmul(g.acc[1], g.at[0], g.bt[1], tm, tk, tn)
				mmul(g.acc[2], g.at[1], g.bt[0], tm, tk, tn)
				mmul(g.acc[3], g.at[1], g.bt[1], tm, tk, tn)
			}
			for q, acc := range g.acc {
				g.store(acc, q/2, j+q%2)
			}
		}
		if err := writeChunks(ctx, out, g.rows, g.cfg.OutChunk); err != nil {
			return err
		}
	}
	return nil
}

// store narrows one tile accumulator into the pending row buffer. dr selects
// the upper or lower tile row of the pair, j is the tile column.
func (g *GEMM[I, O]) store(acc []fixed.Acc, dr, j int) {
	tm, tn, n := g.cfg.TileM, g.cfg.TileN, g.cfg.N
	for r := range tm {
		row := g.rows[(dr*tm+r)*n+j*tn:]
		for c := range tn {
			row[c] = fixed.NarrowTo[O](g.narrow, acc[r*tn+c])
		}
	}
}

// mmul accumulates a (tm x tk) times b (tk x tn) into c (tm x tn), all
// row-major.
func mmul(c []fixed.Acc, a, b []int64, tm, tk, tn int) {
	for r := range tm {
		cr := c[r*tn : r*tn+tn]
		for k := range tk {
			av := a[r*tk+k]
			br := b[k*tn : k*tn+tn]
			for j, bv := range br {
				cr[j].Add(av * bv)
			}
		}
	}
}
