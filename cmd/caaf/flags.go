package main

import (
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/caaf/internal/gpu"
	"github.com/samcharles93/caaf/internal/loader"
	"github.com/samcharles93/caaf/internal/logger"
	"github.com/samcharles93/caaf/internal/storage"
)

const envStorageDir = "CAAF_STORAGE_DIR"

var (
	configFile string
	logLevel   string
	logFormat  string
	debug      bool
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Usage:       "path to config.yaml",
		Value:       configPath(),
		Destination: &configFile,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
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

// loaderFlags holds the flags every command that builds a Loader shares.
type loaderFlags struct {
	storageDir   string
	modelsRoot   string
	shadersRoot  string
	memoryLimit  uint64
	cyclePolicy  string
	retainSource bool
	wait         time.Duration
}

func (f *loaderFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-dir",
			Aliases:     []string{"dir"},
			Usage:       "storage directory holding the model and shader roots",
			Destination: &f.storageDir,
		},
		&cli.StringFlag{
			Name:        "models-root",
			Usage:       "model root inside the storage directory",
			Value:       loader.DefaultModelsRoot,
			Destination: &f.modelsRoot,
		},
		&cli.StringFlag{
			Name:        "shaders-root",
			Usage:       "shader root inside the storage directory",
			Value:       loader.DefaultShadersRoot,
			Destination: &f.shadersRoot,
		},
		&cli.Uint64Flag{
			Name:        "memory-limit",
			Usage:       "maximum bytes a single container may decompress to (0 = default)",
			Destination: &f.memoryLimit,
		},
		&cli.StringFlag{
			Name:        "cycle-policy",
			Usage:       "dependency cycle handling (tolerate, reject)",
			Value:       loader.CycleTolerate.String(),
			Destination: &f.cyclePolicy,
		},
		&cli.BoolFlag{
			Name:        "retain-source",
			Usage:       "keep decoded documents so assets can be written back",
			Destination: &f.retainSource,
		},
		&cli.DurationFlag{
			Name:        "wait",
			Usage:       "how long to wait for the storage directory to appear",
			Value:       5 * time.Second,
			Destination: &f.wait,
		},
	}
}

// storage returns the storage directory, falling back to the environment.
func (f *loaderFlags) storage() string {
	if dir := strings.TrimSpace(f.storageDir); dir != "" {
		return dir
	}
	return strings.TrimSpace(os.Getenv(envStorageDir))
}

// options builds loader options. Storage is only wired when a storage
// directory is known; path-based loads work without one.
func (f *loaderFlags) options(log logger.Logger, backend gpu.Backend) (loader.Options, error) {
	cycles, err := loader.ParseCyclePolicy(f.cyclePolicy)
	if err != nil {
		return loader.Options{}, err
	}
	opts := loader.Options{
		Backend:      backend,
		Logger:       log,
		ModelsRoot:   f.modelsRoot,
		ShadersRoot:  f.shadersRoot,
		MemoryLimit:  f.memoryLimit,
		Cycles:       cycles,
		RetainSource: f.retainSource,
	}
	if dir := f.storage(); dir != "" {
		opts.Storage = storage.NewDir(dir)
	}
	return opts, nil
}
