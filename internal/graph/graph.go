// Package graph binds a kernel to its input and output streams and runs a
// fixed number of invocations, checking the stream boundary for underrun
// and overrun.
package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/blockmac/internal/fixed"
	"github.com/samcharles93/blockmac/internal/kernel"
	"github.com/samcharles93/blockmac/internal/logger"
	"github.com/samcharles93/blockmac/internal/stream"
)

// DefaultDepth is the number of chunks a pipe buffers between stages.
const DefaultDepth = 4

// Stats summarizes one graph run.
type Stats struct {
	Invocations int           `json:"invocations"`
	InputElems  int           `json:"input_elems"`
	OutputElems int           `json:"output_elems"`
	InChunks    int64         `json:"in_chunks"`
	OutChunks   int64         `json:"out_chunks"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Graph runs one kernel instance over its streams.
type Graph[I, O fixed.Element] struct {
	kernel      kernel.Kernel[I, O]
	invocations int
	depth       int
	log         logger.Logger
}

// New wires k into a graph running k.Config().Invocations invocations. A nil
// log discards.
func New[I, O fixed.Element](k kernel.Kernel[I, O], log logger.Logger) *Graph[I, O] {
	if log == nil {
		log = logger.Discard()
	}
	cfg := k.Config()
	return &Graph[I, O]{
		kernel:      k,
		invocations: cfg.Invocations,
		depth:       DefaultDepth,
		log:         log.With("variant", cfg.Variant, "kind", string(cfg.Kind)),
	}
}

// WithInvocations returns a copy of g running n invocations.
func (g *Graph[I, O]) WithInvocations(n int) *Graph[I, O] {
	c := *g
	c.invocations = n
	return &c
}

// WithDepth returns a copy of g whose pipes buffer depth chunks.
func (g *Graph[I, O]) WithDepth(depth int) *Graph[I, O] {
	c := *g
	c.depth = depth
	return &c
}

func (g *Graph[I, O]) Invocations() int { return g.invocations }

// Run invokes the kernel g.Invocations() times on the calling goroutine and
// then requires in to be exhausted.
func (g *Graph[I, O]) Run(ctx context.Context, in stream.Reader[I], out stream.Writer[O]) error {
	if g.invocations <= 0 {
		return fmt.Errorf("graph: %d invocations", g.invocations)
	}
	cfg := g.kernel.Config()
	for i := range g.invocations {
		start := time.Now()
		if err := g.kernel.Invoke(ctx, in, out); err != nil {
			return fmt.Errorf("graph: invocation %d: %w", i, err)
		}
		g.log.Debug("invocation complete", "index", i, "elapsed", time.Since(start))
	}
	if err := stream.ExpectEOF(ctx, in, cfg.InChunk); err != nil {
		return fmt.Errorf("graph: after %d invocations: %w", g.invocations, err)
	}
	return nil
}

// Execute runs the producer, the kernel and the consumer concurrently,
// connected by bounded pipes. src is pumped into the kernel's input in
// InChunk chunks and the kernel's output is pumped into dst in OutChunk
// chunks. The first failure cancels the other stages.
func (g *Graph[I, O]) Execute(ctx context.Context, src stream.Reader[I], dst stream.Writer[O]) (Stats, error) {
	cfg := g.kernel.Config()
	inPipe := stream.NewPipe[I](cfg.InChunk, g.depth)
	outPipe := stream.NewPipe[O](cfg.OutChunk, g.depth)

	start := time.Now()
	eg, ctx := errgroup.WithContext(ctx)

	var tail error
	eg.Go(func() error {
		defer inPipe.Close()
		err := pump(ctx, src, inPipe, cfg.InChunk)
		if errors.Is(err, stream.ErrUnderrun) {
			// A ragged final chunk can never be consumed. Report it only if
			// the kernel itself finished cleanly.
			tail = fmt.Errorf("graph: input: %w", stream.ErrOverrun)
			return nil
		}
		if err != nil {
			return fmt.Errorf("graph: source: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		defer outPipe.Close()
		return g.Run(ctx, inPipe, outPipe)
	})
	eg.Go(func() error {
		if err := pump(ctx, outPipe, dst, cfg.OutChunk); err != nil {
			return fmt.Errorf("graph: sink: %w", err)
		}
		return nil
	})

	err := eg.Wait()
	if err == nil {
		err = tail
	}
	stats := Stats{
		Invocations: g.invocations,
		InputElems:  int(inPipe.Transferred()) * cfg.InChunk,
		OutputElems: int(outPipe.Transferred()) * cfg.OutChunk,
		InChunks:    inPipe.Transferred(),
		OutChunks:   outPipe.Transferred(),
		Elapsed:     time.Since(start),
	}
	if err != nil {
		g.log.Warn("graph failed", "error", err, "out_chunks", stats.OutChunks)
		return stats, err
	}
	g.log.Info("graph finished",
		"invocations", stats.Invocations,
		"inputs", stats.InputElems,
		"outputs", stats.OutputElems,
		"elapsed", stats.Elapsed,
	)
	return stats, nil
}

// Collect executes g over an in-memory input and returns every output.
func (g *Graph[I, O]) Collect(ctx context.Context, input []I) ([]O, Stats, error) {
	sink := stream.NewCollector[O](g.kernel.Config().OutChunk)
	stats, err := g.Execute(ctx, stream.NewSliceReader(input), sink)
	return sink.Values(), stats, err
}

func pump[T any](ctx context.Context, r stream.Reader[T], w stream.Writer[T], chunk int) error {
	buf := make([]T, chunk)
	for {
		err := r.Read(ctx, buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := w.Write(ctx, buf); err != nil {
			return err
		}
	}
}
