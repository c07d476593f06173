package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/caaf/internal/api"
	"github.com/samcharles93/caaf/internal/gpu"
	"github.com/samcharles93/caaf/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		lf          loaderFlags
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the asset cache tooling API",
		Flags: append(lf.flags(),
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
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, configFrom(ctx), &addr)

			l, device, err := newLoader(ctx, cmd, &lf, false)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			begin := func() (gpu.CopyPass, func() error) {
				p := device.BeginCopyPass()
				return p, p.Submit
			}

			server := api.NewServer(l, begin, log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "storage", lf.storage())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
