package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the caaf configuration file (~/.config/caaf/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	StorageDir   string  `yaml:"storage_dir"`
	ModelsRoot   string  `yaml:"models_root"`
	ShadersRoot  string  `yaml:"shaders_root"`
	MemoryLimit  *uint64 `yaml:"memory_limit"`
	CyclePolicy  string  `yaml:"cycle_policy"`
	RetainSource *bool   `yaml:"retain_source"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "caaf", "config.yaml")
}

// readConfig reads the config file at path. A missing file yields a zero
// Config; a malformed one is an error.
func readConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

type configKey struct{}

func withConfig(ctx context.Context, cfg Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) Config {
	cfg, _ := ctx.Value(configKey{}).(Config)
	return cfg
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyLoaderConfig applies config file defaults to loader flags that were
// not set explicitly.
func applyLoaderConfig(c *cli.Command, cfg Config, f *loaderFlags) {
	if cfg.StorageDir != "" && !c.IsSet("storage-dir") {
		f.storageDir = cfg.StorageDir
	}
	if cfg.ModelsRoot != "" && !c.IsSet("models-root") {
		f.modelsRoot = cfg.ModelsRoot
	}
	if cfg.ShadersRoot != "" && !c.IsSet("shaders-root") {
		f.shadersRoot = cfg.ShadersRoot
	}
	if cfg.MemoryLimit != nil && !c.IsSet("memory-limit") {
		f.memoryLimit = *cfg.MemoryLimit
	}
	if cfg.CyclePolicy != "" && !c.IsSet("cycle-policy") {
		f.cyclePolicy = cfg.CyclePolicy
	}
	if cfg.RetainSource != nil && !c.IsSet("retain-source") {
		f.retainSource = *cfg.RetainSource
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
