// Package stream provides bounded, chunked, strictly ordered channels
// between graph stages.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

var (
	ErrChunkSize = errors.New("stream: chunk size mismatch")
	ErrUnderrun  = errors.New("stream: underrun")
	ErrOverrun   = errors.New("stream: overrun")
	ErrClosed    = errors.New("stream: write on closed pipe")
)

// Reader delivers exactly len(dst) elements per call, blocking until a chunk
// is available. It returns io.EOF once the producer has closed the stream and
// every chunk has been consumed.
type Reader[T any] interface {
	Read(ctx context.Context, dst []T) error
}

// Writer accepts exactly one chunk per call, blocking while the stream is
// full.
type Writer[T any] interface {
	Write(ctx context.Context, src []T) error
}

// Pipe is a bounded single-producer single-consumer chunk channel. Writers
// block when depth chunks are in flight.
type Pipe[T any] struct {
	chunk  int
	ch     chan []T
	closed atomic.Bool
	once   sync.Once
	chunks atomic.Int64
}

// NewPipe returns a pipe carrying chunks of exactly chunk elements with room
// for depth chunks in flight.
func NewPipe[T any](chunk, depth int) *Pipe[T] {
	if chunk <= 0 {
		panic("stream: chunk size must be positive")
	}
	if depth < 1 {
		depth = 1
	}
	return &Pipe[T]{chunk: chunk, ch: make(chan []T, depth)}
}

// Chunk returns the chunk size in elements.
func (p *Pipe[T]) Chunk() int { return p.chunk }

// Transferred returns the number of chunks written so far.
func (p *Pipe[T]) Transferred() int64 { return p.chunks.Load() }

func (p *Pipe[T]) Write(ctx context.Context, src []T) error {
	if len(src) != p.chunk {
		return fmt.Errorf("%w: write of %d, chunk is %d", ErrChunkSize, len(src), p.chunk)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed.Load() {
		return ErrClosed
	}
	buf := make([]T, p.chunk)
	copy(buf, src)
	select {
	case p.ch <- buf:
		p.chunks.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipe[T]) Read(ctx context.Context, dst []T) error {
	if len(dst) != p.chunk {
		return fmt.Errorf("%w: read of %d, chunk is %d", ErrChunkSize, len(dst), p.chunk)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case buf, ok := <-p.ch:
		if !ok {
			return io.EOF
		}
		copy(dst, buf)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the end of the stream. Only the producer may call it; further
// writes fail with ErrClosed. Close is idempotent.
func (p *Pipe[T]) Close() {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.ch)
	})
}
