package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockmac/internal/harness"
)

const maxReportedMismatches = 8

func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Compare an output stream file against expected values",
		ArgsUsage: "<output> <expected>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return cli.Exit("verify: need <output> and <expected>", 1)
			}
			e, err := setupLogging(ctx, cmd)
			if err != nil {
				return err
			}
			got, err := harness.ReadIntsFile(cmd.Args().Get(0))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			want, err := harness.ReadIntsFile(cmd.Args().Get(1))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			cmp := harness.Compare(got, want, maxReportedMismatches)
			logComparison(e, cmp)
			if !cmp.OK() {
				return cli.Exit(fmt.Sprintf("verify: %d mismatches (got %d values, want %d)", cmp.Mismatches, cmp.GotLen, cmp.WantLen), 1)
			}
			return nil
		},
	}
}
