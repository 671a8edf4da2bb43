package graph

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/samcharles93/blockmac/internal/kernel"
	"github.com/samcharles93/blockmac/internal/logger"
	"github.com/samcharles93/blockmac/internal/stream"
)

func newGraph(t *testing.T, invocations int) *Graph[int32, int32] {
	t.Helper()
	v, err := kernel.Lookup("gemv-i32-lmac8")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	cfg := v.Config
	cfg.Invocations = invocations
	a := make([]int32, cfg.M*cfg.K)
	for m := range cfg.M {
		for k := range cfg.K {
			// Row m picks x[m%K] so the output mirrors the input.
			if k == m%cfg.K {
				a[m*cfg.K+k] = 1
			}
		}
	}
	scheme, err := cfg.MatrixScheme()
	if err != nil {
		t.Fatalf("scheme: %v", err)
	}
	res, err := kernel.PackResident(scheme, a)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	k, err := kernel.New[int32, int32](cfg, res)
	if err != nil {
		t.Fatalf("kernel: %v", err)
	}
	return New(k, nil)
}

func ramp(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(i - n/2)
	}
	return out
}

func TestExecutePreservesOrder(t *testing.T) {
	t.Parallel()
	g := newGraph(t, 20)
	input := ramp(20 * 16)
	got, stats, err := g.Collect(context.Background(), input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(got) != len(input) {
		t.Fatalf("outputs: got %d want %d", len(got), len(input))
	}
	for i := range input {
		if got[i] != input[i] {
			t.Fatalf("output %d: got %d want %d", i, got[i], input[i])
		}
	}
	if stats.Invocations != 20 || stats.InputElems != 320 || stats.OutputElems != 320 {
		t.Fatalf("stats: %+v", stats)
	}
	if stats.InChunks != 40 || stats.OutChunks != 40 {
		t.Fatalf("chunks: got %d/%d want 40/40", stats.InChunks, stats.OutChunks)
	}
}

func TestExecuteBoundary(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		n    int
		want error
	}{
		{"underrun-chunk", 3*16 - 8, stream.ErrUnderrun},
		{"underrun-partial", 3*16 - 5, stream.ErrUnderrun},
		{"overrun-chunk", 3*16 + 8, stream.ErrOverrun},
		{"overrun-partial", 3*16 + 3, stream.ErrOverrun},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := newGraph(t, 3)
			_, _, err := g.Collect(context.Background(), ramp(tc.n))
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
}

func TestRunSequential(t *testing.T) {
	t.Parallel()
	g := newGraph(t, 2)
	out := stream.NewCollector[int32](8)
	in := stream.NewSliceReader(ramp(32))
	if err := g.Run(context.Background(), in, out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out.Values()) != 32 {
		t.Fatalf("outputs: got %d want 32", len(out.Values()))
	}
	more := stream.NewSliceReader(ramp(48))
	if err := g.Run(context.Background(), more, out); !errors.Is(err, stream.ErrOverrun) {
		t.Fatalf("overrun: got %v want ErrOverrun", err)
	}
}

func TestRunNumbersInvocationsPerRun(t *testing.T) {
	t.Parallel()
	g := newGraph(t, 3)
	out := stream.NewCollector[int32](8)
	if err := g.Run(context.Background(), stream.NewSliceReader(ramp(48)), out); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// One and a half invocations: the second invocation of this run runs out
	// after its first chunk.
	err := g.Run(context.Background(), stream.NewSliceReader(ramp(24)), out)
	if !errors.Is(err, stream.ErrUnderrun) {
		t.Fatalf("got %v want ErrUnderrun", err)
	}
	if !strings.Contains(err.Error(), "invocation 1: input chunk 1") {
		t.Fatalf("error does not name the failing invocation of this run: %v", err)
	}
}

type failingSink struct{ after int }

func (f *failingSink) Write(ctx context.Context, src []int32) error {
	if f.after == 0 {
		return errors.New("disk full")
	}
	f.after--
	return nil
}

func TestExecuteSinkFailure(t *testing.T) {
	t.Parallel()
	g := newGraph(t, 20).WithDepth(1)
	_, err := g.Execute(context.Background(), stream.NewSliceReader(ramp(320)), &failingSink{after: 3})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("got %v want sink failure", err)
	}
}

func TestExecuteCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := newGraph(t, 1)
	if _, _, err := g.Collect(ctx, ramp(16)); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v want context.Canceled", err)
	}
}

func TestExecuteLogsSummary(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	g := newGraph(t, 2)
	g.log = logger.JSON(&buf, -4).With("test", true)
	if _, _, err := g.Collect(context.Background(), ramp(32)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "graph finished") || !strings.Contains(out, "invocation complete") {
		t.Fatalf("missing log lines: %s", out)
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	d := newGraph(t, 20).WithInvocations(5).Describe()
	if d.Variant != "gemv-i32-lmac8" || d.Invocations != 5 {
		t.Fatalf("description: %+v", d)
	}
	if d.Input.Chunk != 8 || d.Input.PerInvoke != 16 || d.Input.ElemBits != 32 {
		t.Fatalf("input port: %+v", d.Input)
	}
	if d.Matrix != "interleaved/q2" {
		t.Fatalf("matrix: got %q want interleaved/q2", d.Matrix)
	}
	// 16 products of two int32 need 67 bits; 80-1-67 = 12.
	if d.GuardBits != 12 {
		t.Fatalf("guard bits: got %d want 12", d.GuardBits)
	}
}
