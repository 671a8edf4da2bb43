package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockmac/internal/config"
)

const defaultVariant = "gemv-i32-lmac8"

var (
	configPath  string
	variantName string
	logLevel    string
	logFormat   string
	debug       bool
	perLine     int64
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "graph file (default ~/.config/blockmac/config.yaml)",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func variantFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "variant",
			Aliases:     []string{"v"},
			Usage:       "kernel variant (see `blockmac variants`)",
			Value:       defaultVariant,
			Destination: &variantName,
		},
		&cli.Int64Flag{
			Name:        "per-line",
			Usage:       "values per line in text stream files",
			Value:       4,
			Destination: &perLine,
		},
	}
}

// kernelFlag names map one-to-one onto config.Kernel fields.
var kernelIntFlags = []struct {
	name  string
	usage string
	field func(k *config.Kernel) **int
}{
	{"m", "output rows", func(k *config.Kernel) **int { return &k.M }},
	{"k", "reduction length", func(k *config.Kernel) **int { return &k.K }},
	{"n", "GEMM output columns", func(k *config.Kernel) **int { return &k.N }},
	{"in-chunk", "input chunk size in elements", func(k *config.Kernel) **int { return &k.InChunk }},
	{"out-chunk", "output chunk size in elements", func(k *config.Kernel) **int { return &k.OutChunk }},
	{"lanes", "accumulator lanes", func(k *config.Kernel) **int { return &k.Lanes }},
	{"unroll", "accumulators per unrolled group (1, 2, 4)", func(k *config.Kernel) **int { return &k.Unroll }},
	{"q", "column interleave groups", func(k *config.Kernel) **int { return &k.Q }},
	{"tile-m", "GEMM tile rows", func(k *config.Kernel) **int { return &k.TileM }},
	{"tile-k", "GEMM tile depth", func(k *config.Kernel) **int { return &k.TileK }},
	{"tile-n", "GEMM tile columns", func(k *config.Kernel) **int { return &k.TileN }},
	{"splits", "independent partial sums along K", func(k *config.Kernel) **int { return &k.Splits }},
	{"prefetch", "tile lookahead depth", func(k *config.Kernel) **int { return &k.Prefetch }},
	{"invocations", "kernel invocations per run", func(k *config.Kernel) **int { return &k.Invocations }},
}

func kernelFlags() []cli.Flag {
	flags := make([]cli.Flag, 0, len(kernelIntFlags)+5)
	for _, f := range kernelIntFlags {
		flags = append(flags, &cli.Int64Flag{Name: f.name, Usage: f.usage})
	}
	return append(flags,
		&cli.Int64Flag{Name: "shift", Usage: "output right shift"},
		&cli.Int64Flag{Name: "acc-bits", Usage: "declared accumulator width (48, 80)"},
		&cli.StringFlag{Name: "scheme", Usage: "resident matrix layout (interleaved, tiled, tiled-col, row-major)"},
		&cli.StringFlag{Name: "rounding", Usage: "rounding on shift (floor, half-up)"},
		&cli.StringFlag{Name: "overflow", Usage: "overflow policy (saturate, truncate)"},
	)
}

// kernelOverrides collects the kernel flags set on the command line.
func kernelOverrides(cmd *cli.Command) config.Kernel {
	var k config.Kernel
	for _, f := range kernelIntFlags {
		if cmd.IsSet(f.name) {
			v := int(cmd.Int64(f.name))
			*f.field(&k) = &v
		}
	}
	if cmd.IsSet("shift") {
		v := uint(cmd.Int64("shift"))
		k.Shift = &v
	}
	if cmd.IsSet("acc-bits") {
		v := uint(cmd.Int64("acc-bits"))
		k.AccBits = &v
	}
	if cmd.IsSet("scheme") {
		v := cmd.String("scheme")
		k.Scheme = &v
	}
	if cmd.IsSet("rounding") {
		v := cmd.String("rounding")
		k.Rounding = &v
	}
	if cmd.IsSet("overflow") {
		v := cmd.String("overflow")
		k.Overflow = &v
	}
	return k
}
