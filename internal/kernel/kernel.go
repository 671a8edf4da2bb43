// Package kernel implements the blocked fixed-point multiply-accumulate
// kernels: GEMV with interleaved column tiles (optionally split into partial
// sums) and GEMM with a 2x2 tile micro-kernel.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samcharles93/blockmac/internal/fixed"
	"github.com/samcharles93/blockmac/internal/stream"
)

// Kernel consumes one invocation's worth of chunks from in and writes the
// narrowed results to out. A kernel instance is not safe for concurrent use;
// its resident matrix is.
type Kernel[I, O fixed.Element] interface {
	Config() Config
	Invoke(ctx context.Context, in stream.Reader[I], out stream.Writer[O]) error
}

// New validates cfg and builds the kernel it describes around res.
func New[I, O fixed.Element](cfg Config, res *Resident[I]) (Kernel[I, O], error) {
	if cfg.Kind == KindGEMM {
		k, err := NewGEMM[I, O](cfg, res)
		if err != nil {
			return nil, err
		}
		return k, nil
	}
	k, err := NewGEMV[I, O](cfg, res)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func checkResident[I fixed.Element](cfg Config, res *Resident[I]) error {
	if res == nil {
		return configErr("matrix", "no resident matrix")
	}
	if res.Rows() != cfg.M || res.Cols() != cfg.K {
		return configErr("matrix", "resident is %dx%d, kernel expects %dx%d", res.Rows(), res.Cols(), cfg.M, cfg.K)
	}
	return nil
}

// readChunk reads one input sub-block. The end of the stream inside an
// invocation is an underrun.
func readChunk[T any](ctx context.Context, in stream.Reader[T], dst []T, chunk int) error {
	err := in.Read(ctx, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		err = stream.ErrUnderrun
	}
	return fmt.Errorf("input chunk %d: %w", chunk, err)
}

func writeChunks[T any](ctx context.Context, out stream.Writer[T], src []T, chunk int) error {
	if err := stream.Feed(ctx, out, src, chunk); err != nil {
		return fmt.Errorf("output %w", err)
	}
	return nil
}
