package main

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockmac/internal/api"
	"github.com/samcharles93/blockmac/internal/harness"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		storeSize   int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a kernel graph over HTTP",
		Flags: slices.Concat(variantFlags(), kernelFlags(), []cli.Flag{
			&cli.StringFlag{Name: "matrix", Usage: "resident matrix, row-major (text or .bmx)"},
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "store-size",
				Usage:       "invocations kept for retrieval",
				Value:       api.DefaultStoreSize,
				Destination: &storeSize,
			},
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			v := e.variant
			matrixPath := path(cmd, "matrix", e.file.Matrix)
			if matrixPath == "" {
				return cli.Exit("serve: --matrix is required", 1)
			}
			matrix, err := harness.LoadMatrix(matrixPath, v.Config.M, v.Config.K, v.InBits)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			eng, err := harness.NewEngine(v.Config, v.InBits, v.OutBits, matrix, e.log)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if e.file.ServerAddress != "" && !cmd.IsSet("addr") {
				addr = e.file.ServerAddress
			}

			server := api.NewServer(eng, api.NewInvocationStore(int(storeSize)), e.log)
			ec := echo.New()
			ec.Use(middleware.RequestLogger())
			ec.Use(middleware.Recover())
			server.Register(ec)
			e.log.Info("starting server", "address", addr, "variant", v.Name)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(e.ctx, ec)
		},
	}
}
