package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/caaf/internal/gpu/memgpu"
	"github.com/samcharles93/caaf/internal/loader"
	"github.com/samcharles93/caaf/internal/logger"
	"github.com/samcharles93/caaf/internal/storage"
	"github.com/samcharles93/caaf/pkg/caaf"
)

func TestReloaderRebuildsChangedContainer(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	models := filepath.Join(root, loader.DefaultModelsRoot)
	if err := os.MkdirAll(models, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(models, "crate"+caaf.ExtModel)
	write := func(vertices int) {
		t.Helper()
		doc := &caaf.Document{
			Name:      "crate",
			Meshes:    []caaf.Mesh{{VertexOffsets: []uint32{0}, Vertices: make([]byte, vertices)}},
			Pipelines: []caaf.Pipeline{{}},
		}
		if err := caaf.WriteFile(path, doc); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(12)

	device := memgpu.New()
	l, err := loader.New(loader.Options{Storage: storage.NewDir(root), Backend: device})
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	pass := device.BeginCopyPass()
	if err := l.Load(context.Background(), "crate", pass); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := pass.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	first, _ := l.Get("crate")

	r := &reloader{loader: l, device: device, limit: caaf.DecompressMemoryMax, log: logger.Nop()}
	ctx := context.Background()

	if changed, err := r.reload(ctx, path); err != nil || changed {
		t.Fatalf("unchanged file: got changed=%v err=%v", changed, err)
	}

	write(48)
	changed, err := r.reload(ctx, path)
	if err != nil || !changed {
		t.Fatalf("changed file: got changed=%v err=%v", changed, err)
	}
	next, ok := l.Get("crate")
	if !ok || next.ID == first.ID || next.Meshes[0].VertexSize != 48 {
		t.Fatalf("asset not rebuilt: %+v", next)
	}
	if s := device.Stats(); s.LiveBuffers != 1 {
		t.Fatalf("old buffers not released: %+v", s)
	}

	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := r.reload(ctx, path); err == nil {
		t.Fatal("expected error for undecodable container")
	}
	if kept, ok := l.Get("crate"); !ok || kept.ID != next.ID {
		t.Fatal("cached asset should survive a broken rewrite")
	}

	if changed, err := r.reload(ctx, filepath.Join(models, "other"+caaf.ExtModel)); err != nil || changed {
		t.Fatalf("uncached asset: got changed=%v err=%v", changed, err)
	}
}
