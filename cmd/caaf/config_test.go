package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/caaf/internal/loader"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestReadConfig(t *testing.T) {
	t.Parallel()

	t.Run("missing file is empty", func(t *testing.T) {
		t.Parallel()
		cfg, err := readConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		if err != nil {
			t.Fatalf("readConfig returned error: %v", err)
		}
		if cfg != (Config{}) {
			t.Fatalf("expected zero config, got %+v", cfg)
		}
	})

	t.Run("fields", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `
storage_dir: /srv/assets
models_root: meshes
memory_limit: 1024
cycle_policy: reject
retain_source: false
log_level: debug
server_address: 0.0.0.0:9000
`)
		cfg, err := readConfig(path)
		if err != nil {
			t.Fatalf("readConfig returned error: %v", err)
		}
		if cfg.StorageDir != "/srv/assets" || cfg.ModelsRoot != "meshes" || cfg.CyclePolicy != "reject" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if cfg.MemoryLimit == nil || *cfg.MemoryLimit != 1024 {
			t.Fatalf("memory limit: got %v want 1024", cfg.MemoryLimit)
		}
		if cfg.RetainSource == nil || *cfg.RetainSource {
			t.Fatalf("retain source should be set to false, got %v", cfg.RetainSource)
		}
		if cfg.ServerAddress != "0.0.0.0:9000" || cfg.LogLevel != "debug" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		t.Parallel()
		if _, err := readConfig(writeConfig(t, "models_root: [unterminated")); err == nil {
			t.Fatal("expected error for malformed config")
		}
	})
}

func TestApplyLoaderConfigRespectsFlags(t *testing.T) {
	t.Parallel()

	limit := uint64(4096)
	retain := true
	cfg := Config{
		StorageDir:   "/from/config",
		ModelsRoot:   "config-models",
		ShadersRoot:  "config-shaders",
		MemoryLimit:  &limit,
		CyclePolicy:  "reject",
		RetainSource: &retain,
	}

	var lf loaderFlags
	cmd := &cli.Command{
		Name:  "test",
		Flags: lf.flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyLoaderConfig(cmd, cfg, &lf)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"test", "--models-root", "flag-models"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if lf.modelsRoot != "flag-models" {
		t.Fatalf("explicit flag overridden: got %q want %q", lf.modelsRoot, "flag-models")
	}
	if lf.storageDir != "/from/config" || lf.shadersRoot != "config-shaders" {
		t.Fatalf("config not applied: %+v", lf)
	}
	if lf.memoryLimit != 4096 || !lf.retainSource || lf.cyclePolicy != "reject" {
		t.Fatalf("config not applied: %+v", lf)
	}

	opts, err := lf.options(nil, nil)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Cycles != loader.CycleReject || opts.Storage == nil {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestLoaderFlagsStorageFallsBackToEnv(t *testing.T) {
	t.Setenv(envStorageDir, "/from/env")

	lf := loaderFlags{cyclePolicy: "tolerate"}
	if got := lf.storage(); got != "/from/env" {
		t.Fatalf("storage: got %q want %q", got, "/from/env")
	}
	lf.storageDir = "/from/flag"
	if got := lf.storage(); got != "/from/flag" {
		t.Fatalf("storage: got %q want %q", got, "/from/flag")
	}

	lf.cyclePolicy = "sometimes"
	if _, err := lf.options(nil, nil); err == nil {
		t.Fatal("expected error for unknown cycle policy")
	}
}
