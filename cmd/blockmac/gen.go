package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockmac/internal/harness"
)

func genCmd() *cli.Command {
	return &cli.Command{
		Name:  "gen",
		Usage: "Generate a random matrix, input stream and expected output",
		Flags: slices.Concat(variantFlags(), kernelFlags(), []cli.Flag{
			&cli.StringFlag{Name: "out-dir", Aliases: []string{"d"}, Usage: "directory for the generated files", Value: "."},
			&cli.Int64Flag{Name: "seed", Usage: "random seed (default: current time)"},
			&cli.Int64Flag{Name: "min", Usage: "smallest generated value (default: element minimum)"},
			&cli.Int64Flag{Name: "max", Usage: "largest generated value (default: element maximum)"},
			&cli.BoolFlag{Name: "binary", Usage: "write the matrix as " + harness.BinaryExt},
		}),
		Action: genAction,
	}
}

func genAction(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	v := e.variant
	cfg := v.Config

	opts := harness.GenOptions{Seed: time.Now().UnixNano()}
	if cmd.IsSet("seed") {
		opts.Seed = cmd.Int64("seed")
	}
	if cmd.IsSet("min") {
		lo := cmd.Int64("min")
		opts.Min = &lo
	}
	if cmd.IsSet("max") {
		hi := cmd.Int64("max")
		opts.Max = &hi
	}
	ds, err := harness.Generate(cfg, v.InBits, v.OutBits, opts)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	dir := cmd.String("out-dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	matrixName := "matrix.txt"
	if cmd.Bool("binary") {
		matrixName = "matrix" + harness.BinaryExt
	}
	matrixPath := filepath.Join(dir, matrixName)
	if err := harness.SaveMatrix(matrixPath, cfg.M, cfg.K, v.InBits, ds.Matrix, e.perLine); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	inputPath := filepath.Join(dir, "input.txt")
	if err := harness.WriteIntsFile(inputPath, ds.Input, e.perLine); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	expectedPath := filepath.Join(dir, "expected.txt")
	if err := harness.WriteIntsFile(expectedPath, ds.Expected, e.perLine); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	e.log.Info("generated dataset",
		"variant", v.Name,
		"seed", opts.Seed,
		"matrix", matrixPath,
		"input", inputPath,
		"expected", expectedPath,
		"invocations", cfg.Invocations,
	)
	return nil
}
