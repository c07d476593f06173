package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/caaf/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:   "caaf",
		Usage:  "Inspect, pack and load CAAF asset containers",
		Flags:  append(loggingFlags(), configFlag()),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			loadCmd(),
			inspectCmd(),
			packCmd(),
			listCmd(),
			serveCmd(),
			watchCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup reads the config file and installs the logger every command pulls
// from its context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := readConfig(configFile)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	applyLoggingConfig(cmd, cfg)
	if debug {
		logLevel = "debug"
	}
	log, err := logger.Setup(logLevel, logFormat, os.Stderr)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	ctx = logger.WithContext(ctx, log)
	return withConfig(ctx, cfg), nil
}
