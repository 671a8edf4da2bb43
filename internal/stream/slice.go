package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// SliceReader serves a fixed slice in chunks.
type SliceReader[T any] struct {
	data []T
	pos  int
}

func NewSliceReader[T any](data []T) *SliceReader[T] {
	return &SliceReader[T]{data: data}
}

func (r *SliceReader[T]) Read(ctx context.Context, dst []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	left := len(r.data) - r.pos
	if left == 0 {
		return io.EOF
	}
	if left < len(dst) {
		return fmt.Errorf("%w: %d elements left, chunk is %d", ErrUnderrun, left, len(dst))
	}
	copy(dst, r.data[r.pos:r.pos+len(dst)])
	r.pos += len(dst)
	return nil
}

// Remaining reports how many elements have not been read.
func (r *SliceReader[T]) Remaining() int { return len(r.data) - r.pos }

// Collector is a Writer that appends every chunk to an in-memory slice.
type Collector[T any] struct {
	chunk  int
	values []T
}

// NewCollector returns a collector accepting chunks of exactly chunk
// elements. A chunk of 0 accepts any size.
func NewCollector[T any](chunk int) *Collector[T] {
	return &Collector[T]{chunk: chunk}
}

func (c *Collector[T]) Write(ctx context.Context, src []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.chunk > 0 && len(src) != c.chunk {
		return fmt.Errorf("%w: write of %d, chunk is %d", ErrChunkSize, len(src), c.chunk)
	}
	c.values = append(c.values, src...)
	return nil
}

func (c *Collector[T]) Values() []T { return c.values }

// Feed writes values to w in chunks. len(values) must be a multiple of chunk.
func Feed[T any](ctx context.Context, w Writer[T], values []T, chunk int) error {
	if chunk <= 0 || len(values)%chunk != 0 {
		return fmt.Errorf("%w: %d values in chunks of %d", ErrChunkSize, len(values), chunk)
	}
	for i := 0; i < len(values); i += chunk {
		if err := w.Write(ctx, values[i:i+chunk]); err != nil {
			return fmt.Errorf("chunk %d: %w", i/chunk, err)
		}
	}
	return nil
}

// ExpectEOF checks that r has nothing left. Any delivered chunk means the
// producer supplied more data than was consumed.
func ExpectEOF[T any](ctx context.Context, r Reader[T], chunk int) error {
	buf := make([]T, chunk)
	err := r.Read(ctx, buf)
	switch {
	case err == io.EOF:
		return nil
	case err == nil:
		return ErrOverrun
	case errors.Is(err, ErrUnderrun):
		return fmt.Errorf("%w: trailing partial chunk", ErrOverrun)
	default:
		return err
	}
}
