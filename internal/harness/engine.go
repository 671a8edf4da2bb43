package harness

import (
	"context"
	"fmt"
	"io"

	"github.com/samcharles93/blockmac/internal/blocking"
	"github.com/samcharles93/blockmac/internal/fixed"
	"github.com/samcharles93/blockmac/internal/graph"
	"github.com/samcharles93/blockmac/internal/kernel"
	"github.com/samcharles93/blockmac/internal/logger"
)

// Engine owns a resident matrix and runs graphs over it. The element types
// are fixed by the variant; callers exchange int64 values.
type Engine interface {
	Config() kernel.Config
	Describe() graph.Description
	// RunText streams whitespace-separated values from in through
	// Config().Invocations invocations and writes the outputs to out.
	RunText(ctx context.Context, in io.Reader, out io.Writer, perLine int) (graph.Stats, error)
	// Invoke runs one invocation per operand. GEMV operands are K-element
	// vectors; GEMM operands are row-major K x N matrices.
	Invoke(ctx context.Context, operands [][]int64) ([][]int64, graph.Stats, error)
}

// NewEngine packs the row-major matrix into cfg's blocked layout and checks
// that a kernel can be built over it.
func NewEngine(cfg kernel.Config, inBits, outBits uint, matrix []int64, log logger.Logger) (Engine, error) {
	switch {
	case inBits == 32 && outBits == 32:
		return newEngine[int32, int32](cfg, matrix, log)
	case inBits == 16 && outBits == 16:
		return newEngine[int16, int16](cfg, matrix, log)
	case inBits == 16 && outBits == 32:
		return newEngine[int16, int32](cfg, matrix, log)
	case inBits == 8 && outBits == 8:
		return newEngine[int8, int8](cfg, matrix, log)
	case inBits == 8 && outBits == 16:
		return newEngine[int8, int16](cfg, matrix, log)
	case inBits == 8 && outBits == 32:
		return newEngine[int8, int32](cfg, matrix, log)
	default:
		return nil, fmt.Errorf("no kernel for int%d -> int%d", inBits, outBits)
	}
}

type engine[I, O fixed.Element] struct {
	cfg kernel.Config
	res *kernel.Resident[I]
	log logger.Logger
}

func newEngine[I, O fixed.Element](cfg kernel.Config, matrix []int64, log logger.Logger) (Engine, error) {
	if log == nil {
		log = logger.Discard()
	}
	if err := cfg.Validate(fixed.Bits[I](), fixed.Bits[O]()); err != nil {
		return nil, err
	}
	if len(matrix) != cfg.M*cfg.K {
		return nil, fmt.Errorf("matrix: have %d values, want %dx%d", len(matrix), cfg.M, cfg.K)
	}
	a, err := ToElems[I](matrix)
	if err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}
	scheme, err := cfg.MatrixScheme()
	if err != nil {
		return nil, err
	}
	res, err := kernel.PackResident(scheme, a)
	if err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}
	e := &engine[I, O]{cfg: cfg, res: res, log: log}
	if _, err := e.graph(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *engine[I, O]) Config() kernel.Config { return e.cfg }

// graph builds a fresh kernel per run. The resident matrix is shared.
func (e *engine[I, O]) graph() (*graph.Graph[I, O], error) {
	k, err := kernel.New[I, O](e.cfg, e.res)
	if err != nil {
		return nil, err
	}
	return graph.New(k, e.log), nil
}

func (e *engine[I, O]) Describe() graph.Description {
	g, err := e.graph()
	if err != nil {
		return graph.Description{Variant: e.cfg.Variant, Kind: string(e.cfg.Kind)}
	}
	return g.Describe()
}

func (e *engine[I, O]) RunText(ctx context.Context, in io.Reader, out io.Writer, perLine int) (graph.Stats, error) {
	g, err := e.graph()
	if err != nil {
		return graph.Stats{}, err
	}
	sink := NewTextSink[O](out, perLine)
	stats, err := g.Execute(ctx, NewTextSource[I](in), sink)
	if ferr := sink.Flush(); err == nil {
		err = ferr
	}
	return stats, err
}

func (e *engine[I, O]) Invoke(ctx context.Context, operands [][]int64) ([][]int64, graph.Stats, error) {
	if len(operands) == 0 {
		return nil, graph.Stats{}, fmt.Errorf("no operands")
	}
	perIn, perOut := e.cfg.InputLen(), e.cfg.OutputLen()
	input := make([]I, 0, len(operands)*perIn)
	for i, op := range operands {
		if len(op) != perIn {
			return nil, graph.Stats{}, fmt.Errorf("operand %d: have %d values, want %d", i, len(op), perIn)
		}
		vals, err := ToElems[I](op)
		if err != nil {
			return nil, graph.Stats{}, fmt.Errorf("operand %d: %w", i, err)
		}
		if e.cfg.Kind == kernel.KindGEMM {
			if vals, err = blocking.Pack(e.cfg.InputScheme(), vals); err != nil {
				return nil, graph.Stats{}, fmt.Errorf("operand %d: %w", i, err)
			}
		}
		input = append(input, vals...)
	}
	g, err := e.graph()
	if err != nil {
		return nil, graph.Stats{}, err
	}
	outs, stats, err := g.WithInvocations(len(operands)).Collect(ctx, input)
	if err != nil {
		return nil, stats, err
	}
	result := make([][]int64, len(operands))
	for i := range result {
		result[i] = FromElems(outs[i*perOut : (i+1)*perOut])
	}
	return result, stats, nil
}
