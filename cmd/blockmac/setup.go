package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockmac/internal/config"
	"github.com/samcharles93/blockmac/internal/kernel"
	"github.com/samcharles93/blockmac/internal/logger"
)

// env is what every command needs after flags and the graph file have been
// merged.
type env struct {
	ctx     context.Context
	log     logger.Logger
	file    config.File
	variant kernel.Variant
	perLine int
}

// setupLogging loads the graph file and configures logging.
func setupLogging(ctx context.Context, cmd *cli.Command) (*env, error) {
	file, err := config.Load(configPath)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	level, format := logLevel, logFormat
	if file.LogLevel != "" && !cmd.IsSet("log-level") {
		level = file.LogLevel
	}
	if file.LogFormat != "" && !cmd.IsSet("log-format") {
		format = file.LogFormat
	}
	log, err := logger.Setup(os.Stderr, format, level, debug)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}

	e := &env{ctx: logger.WithContext(ctx, log), log: log, file: file, perLine: int(perLine)}
	if file.PerLine != nil && !cmd.IsSet("per-line") {
		e.perLine = *file.PerLine
	}
	return e, nil
}

// setup additionally resolves the variant. Precedence is flag, then graph
// file, then variant default.
func setup(ctx context.Context, cmd *cli.Command) (*env, error) {
	e, err := setupLogging(ctx, cmd)
	if err != nil {
		return nil, err
	}
	file := e.file
	if cmd.IsSet("variant") {
		file.Variant = ""
	}
	v, err := file.Resolve(variantName, kernelOverrides(cmd))
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	if err := v.Validate(); err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	e.variant = v
	e.log.Debug("resolved variant",
		"variant", v.Name,
		"kind", string(v.Config.Kind),
		"m", v.Config.M,
		"k", v.Config.K,
		"n", v.Config.N,
	)
	return e, nil
}

// path picks the flag value when set, else the graph file's.
func path(cmd *cli.Command, flag, fromFile string) string {
	if cmd.IsSet(flag) || fromFile == "" {
		return cmd.String(flag)
	}
	return fromFile
}
