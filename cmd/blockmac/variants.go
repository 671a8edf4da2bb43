package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockmac/internal/kernel"
)

func variantsCmd() *cli.Command {
	return &cli.Command{
		Name:  "variants",
		Usage: "List the registered kernel variants",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the full configurations as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			vs := kernel.Variants()
			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(vs)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tTYPES\tSHAPE\tCHUNKS\tDESCRIPTION")
			for _, v := range vs {
				_, _ = fmt.Fprintf(tw, "%s\tint%d->int%d\t%s\t%d/%d\t%s\n",
					v.Name, v.InBits, v.OutBits, shape(v.Config), v.Config.InChunk, v.Config.OutChunk, v.Description)
			}
			return tw.Flush()
		},
	}
}

func shape(cfg kernel.Config) string {
	if cfg.Kind == kernel.KindGEMM {
		return fmt.Sprintf("%dx%d*%dx%d", cfg.M, cfg.K, cfg.K, cfg.N)
	}
	return fmt.Sprintf("%dx%d", cfg.M, cfg.K)
}
