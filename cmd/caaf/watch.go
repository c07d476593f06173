package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"
	"github.com/zeebo/blake3"

	"github.com/samcharles93/caaf/internal/gpu/memgpu"
	"github.com/samcharles93/caaf/internal/loader"
	"github.com/samcharles93/caaf/internal/logger"
	"github.com/samcharles93/caaf/pkg/caaf"
)

// reloader rebuilds cached assets whose container changed on disk.
type reloader struct {
	loader *loader.Loader
	device *memgpu.Device
	limit  uint64
	log    logger.Logger
}

// reload rebuilds the asset stored at path if it is cached and its content
// changed. A container that no longer decodes leaves the cached asset alone.
func (r *reloader) reload(ctx context.Context, path string) (bool, error) {
	name := loader.AssetName(path)
	a, ok := r.loader.Get(name)
	if !ok {
		return false, nil
	}
	data, err := caaf.ReadFile(path, r.limit)
	if err != nil {
		return false, err
	}
	if blake3.Sum256(data) == a.Digest {
		r.log.Debug("container unchanged", "asset", name)
		return false, nil
	}
	if _, err := caaf.Decode(data); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}

	r.loader.Evict(name)
	pass := r.device.BeginCopyPass()
	err = r.loader.Load(ctx, name, pass)
	if serr := pass.Submit(); serr != nil {
		err = errors.Join(err, fmt.Errorf("submit: %w", serr))
	}
	if err != nil {
		return false, err
	}
	next, _ := r.loader.Get(name)
	r.log.Info("asset reloaded", "asset", name, "id", next.ID, "digest", next.DigestHex())
	return true, nil
}

func watchCmd() *cli.Command {
	var lf loaderFlags

	return &cli.Command{
		Name:      "watch",
		Usage:     "Load assets and reload them when their containers change",
		ArgsUsage: "NAME...",
		Flags:     lf.flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			names := cmd.Args().Slice()
			if len(names) == 0 {
				return cli.Exit("error: at least one asset name is required", 1)
			}
			l, device, err := newLoader(ctx, cmd, &lf, false)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			root := lf.storage()
			if root == "" {
				return cli.Exit("error: --storage-dir is required unless "+envStorageDir+" is set", 1)
			}

			loadCtx, cancel := context.WithTimeout(ctx, lf.wait)
			pass := device.BeginCopyPass()
			for _, name := range names {
				if err := l.Load(loadCtx, name, pass); err != nil {
					log.Error("initial load failed", "asset", name, "err", err)
				}
			}
			cancel()
			if err := pass.Submit(); err != nil {
				log.Error("copy pass submit failed", "err", err)
			}

			limit := lf.memoryLimit
			if limit == 0 {
				limit = caaf.DecompressMemoryMax
			}
			r := &reloader{loader: l, device: device, limit: limit, log: log}
			dir := filepath.Join(root, lf.modelsRoot)
			return watchDir(ctx, dir, log, func(path string) {
				if _, err := r.reload(ctx, path); err != nil {
					log.Warn("reload failed", "path", path, "err", err)
				}
			})
		},
	}
}

// watchDir calls changed for every enveloped model container written or
// created in dir until ctx is done.
func watchDir(ctx context.Context, dir string, log logger.Logger, changed func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info("watching", "path", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(ev.Name, caaf.ExtModel) {
				continue
			}
			changed(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "err", err)
		}
	}
}
