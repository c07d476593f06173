package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/caaf/internal/gpu/memgpu"
	"github.com/samcharles93/caaf/internal/loader"
	"github.com/samcharles93/caaf/internal/logger"
	"github.com/samcharles93/caaf/pkg/caaf"
)

// newLoader builds a Loader over an in-memory device from the shared flags
// after config defaults are applied.
func newLoader(ctx context.Context, cmd *cli.Command, f *loaderFlags, retain bool) (*loader.Loader, *memgpu.Device, error) {
	applyLoaderConfig(cmd, configFrom(ctx), f)
	if retain {
		f.retainSource = true
	}
	device := memgpu.New()
	opts, err := f.options(logger.FromContext(ctx), device)
	if err != nil {
		return nil, nil, err
	}
	l, err := loader.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return l, device, nil
}

func loadCmd() *cli.Command {
	var (
		lf        loaderFlags
		paths     []string
		exportDir string
	)

	return &cli.Command{
		Name:      "load",
		Usage:     "Load assets and their dependencies into a scratch device",
		ArgsUsage: "NAME...",
		Flags: append(lf.flags(),
			&cli.StringSliceFlag{
				Name:        "path",
				Aliases:     []string{"p"},
				Usage:       "container file to load directly (repeatable)",
				Destination: &paths,
			},
			&cli.StringFlag{
				Name:        "export",
				Usage:       "write every loaded asset back to this directory as raw containers",
				Destination: &exportDir,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			names := cmd.Args().Slice()
			if len(names) == 0 && len(paths) == 0 {
				return cli.Exit("error: at least one asset name or --path is required", 1)
			}
			l, device, err := newLoader(ctx, cmd, &lf, exportDir != "")
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			loadCtx, cancel := context.WithTimeout(ctx, lf.wait)
			defer cancel()

			pass := device.BeginCopyPass()
			var errs []error
			for _, name := range names {
				if err := l.Load(loadCtx, name, pass); err != nil {
					errs = append(errs, err)
				}
			}
			for _, path := range paths {
				if _, err := l.ReadPath(loadCtx, path, pass); err != nil {
					errs = append(errs, err)
				}
			}
			if err := pass.Submit(); err != nil {
				errs = append(errs, fmt.Errorf("submit: %w", err))
			}

			if exportDir != "" {
				if err := exportAssets(l, exportDir); err != nil {
					errs = append(errs, err)
				}
			}

			printAssets(os.Stdout, l)
			stats := device.Stats()
			log.Info("copy pass submitted",
				"uploads", stats.UploadsExecuted,
				"buffers", stats.LiveBuffers,
				"bytes", stats.BytesInUse,
			)
			if err := errors.Join(errs...); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

// exportAssets writes the retained source of every cached asset to dir.
func exportAssets(l *loader.Loader, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var errs []error
	for _, a := range l.List() {
		if !filepath.IsLocal(a.Name) {
			errs = append(errs, fmt.Errorf("export: asset name %q is not a valid file name", a.Name))
			continue
		}
		if err := l.WritePath(a.Name, filepath.Join(dir, a.Name+caaf.ExtModelRaw)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func printAssets(w io.Writer, l *loader.Loader) {
	assets := l.List()
	for _, a := range assets {
		dep := "-"
		switch {
		case a.Dependency != "":
			dep = a.Dependency
		case a.Requires != "":
			dep = a.Requires + " (unavailable)"
		}
		_, _ = fmt.Fprintf(w, "  %-24s meshes %d/%-3d pipelines %-3d textures %-3d samplers %-3d dep %s\n",
			a.Name, a.Uploaded(), len(a.Meshes), len(a.Pipelines), len(a.Textures), len(a.Samplers), dep)
		_, _ = fmt.Fprintf(w, "  %-24s blake3 %s\n", "", a.DigestHex())
	}
	_, _ = fmt.Fprintf(w, "\n%d asset(s) loaded\n", len(assets))
}
