package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockmac/internal/harness"
	"github.com/samcharles93/blockmac/internal/report"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Stream an input file through a kernel graph",
		Flags: slices.Concat(variantFlags(), kernelFlags(), []cli.Flag{
			&cli.StringFlag{Name: "matrix", Usage: "resident matrix, row-major (text or .bmx)"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "input stream file (- for stdin)", Value: "-"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output stream file (- for stdout)", Value: "-"},
			&cli.StringFlag{Name: "expected", Usage: "compare the output against this file"},
			&cli.StringFlag{Name: "report", Usage: "write a JSON run report (- for stdout)"},
		}),
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	v := e.variant
	cfg := v.Config

	matrixPath := path(cmd, "matrix", e.file.Matrix)
	if matrixPath == "" {
		return cli.Exit("run: --matrix is required", 1)
	}
	matrix, err := harness.LoadMatrix(matrixPath, cfg.M, cfg.K, v.InBits)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	eng, err := harness.NewEngine(cfg, v.InBits, v.OutBits, matrix, e.log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	in, closeIn, err := openInput(path(cmd, "input", e.file.Input))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeIn()
	out, closeOut, err := openOutput(path(cmd, "output", e.file.Output))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	rep := report.New(v)
	expectedPath := path(cmd, "expected", e.file.Expected)
	var captured bytes.Buffer
	sink := out
	if expectedPath != "" {
		sink = io.MultiWriter(out, &captured)
	}

	e.log.Info("running graph", "variant", v.Name, "invocations", cfg.Invocations, "matrix", matrixPath)
	stats, runErr := eng.RunText(e.ctx, in, sink, e.perLine)
	if err := closeOut(); err != nil && runErr == nil {
		runErr = err
	}
	rep.Finish(stats, runErr)

	if runErr == nil && expectedPath != "" {
		cmp, err := verifyAgainst(&captured, expectedPath)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		rep.Verify = &cmp
		logComparison(e, cmp)
	}

	if reportPath := path(cmd, "report", e.file.Report); reportPath != "" {
		if err := rep.WriteFile(reportPath); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	if runErr != nil {
		return cli.Exit(fmt.Sprintf("run: %v", runErr), 1)
	}
	if !rep.OK() {
		return cli.Exit("run: output does not match expected", 1)
	}
	return nil
}

func verifyAgainst(got io.Reader, expectedPath string) (harness.Comparison, error) {
	gotVals, err := harness.ReadInts(got)
	if err != nil {
		return harness.Comparison{}, err
	}
	want, err := harness.ReadIntsFile(expectedPath)
	if err != nil {
		return harness.Comparison{}, err
	}
	return harness.Compare(gotVals, want, maxReportedMismatches), nil
}

func logComparison(e *env, cmp harness.Comparison) {
	if cmp.OK() {
		e.log.Info("output matches expected", "values", cmp.Compared)
		return
	}
	e.log.Error("output mismatch", "mismatches", cmp.Mismatches, "got", cmp.GotLen, "want", cmp.WantLen)
	for _, m := range cmp.First {
		e.log.Error("mismatch", "index", m.Index, "got", m.Got, "want", m.Want)
	}
}

func openInput(p string) (io.Reader, func(), error) {
	if p == "" || p == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(p string) (io.Writer, func() error, error) {
	if p == "" || p == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
