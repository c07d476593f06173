package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/caaf/internal/gpu/memgpu"
	"github.com/samcharles93/caaf/internal/loader"
	"github.com/samcharles93/caaf/internal/storage"
	"github.com/samcharles93/caaf/pkg/caaf"
)

func TestExportAssetsWritesRetainedSources(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	for _, doc := range []*caaf.Document{
		{Name: "crate", Dependency: "props", Meshes: []caaf.Mesh{{VertexOffsets: []uint32{0}, Vertices: make([]byte, 12)}}, Pipelines: []caaf.Pipeline{{}}},
		{Name: "props", IsDependency: true},
	} {
		raw, err := caaf.Encode(doc)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		packed, err := caaf.Compress(raw)
		if err != nil {
			t.Fatalf("compress: %v", err)
		}
		store.Put(loader.DefaultModelsRoot, doc.Name+caaf.ExtModel, packed)
	}

	device := memgpu.New()
	l, err := loader.New(loader.Options{Storage: store, Backend: device, RetainSource: true})
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

	dir := filepath.Join(t.TempDir(), "export")
	if err := exportAssets(l, dir); err != nil {
		t.Fatalf("export: %v", err)
	}
	info, err := inspectFile(filepath.Join(dir, "crate"+caaf.ExtModelRaw), 0)
	if err != nil {
		t.Fatalf("inspect crate: %v", err)
	}
	if info.Dependency != "props" || len(info.Meshes) != 1 {
		t.Fatalf("unexpected export: %+v", info)
	}
	if info, err := inspectFile(filepath.Join(dir, "props"+caaf.ExtModelRaw), 0); err != nil || !info.IsDependency {
		t.Fatalf("props export: %+v err=%v", info, err)
	}

	var out bytes.Buffer
	printAssets(&out, l)
	if !strings.Contains(out.String(), "2 asset(s) loaded") || !strings.Contains(out.String(), "dep props") {
		t.Fatalf("unexpected summary:\n%s", out.String())
	}
}
