package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/caaf/pkg/caaf"
)

func TestReadPathResolvesDependenciesBesideFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := caaf.WriteFile(filepath.Join(dir, "crate"+caaf.ExtModelRaw), asset("crate", "props", 1)); err != nil {
		t.Fatalf("write crate: %v", err)
	}
	if err := caaf.WriteFile(filepath.Join(dir, "props"+caaf.ExtModel), asset("props", "nails", 2)); err != nil {
		t.Fatalf("write props: %v", err)
	}
	if err := caaf.WriteFile(filepath.Join(dir, "nails"+caaf.ExtModelRaw), asset("nails", "", 1)); err != nil {
		t.Fatalf("write nails: %v", err)
	}

	f := newFixture(t, func(o *Options) { o.Storage = nil })
	pass := f.device.BeginCopyPass()
	if _, err := f.loader.ReadPath(context.Background(), filepath.Join(dir, "crate"+caaf.ExtModelRaw), pass); err != nil {
		t.Fatalf("read path: %v", err)
	}
	if err := pass.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if f.loader.Len() != 3 {
		t.Fatalf("cache size: got %d want 3", f.loader.Len())
	}
	crate, _ := f.loader.Get("crate")
	props, ok := f.loader.Dependency(crate)
	if !ok || props.Name != "props" || props.Uploaded() != 2 {
		t.Fatalf("props not resolved: %+v", props)
	}
	if nails, ok := f.loader.Dependency(props); !ok || nails.Name != "nails" {
		t.Fatal("nails not resolved")
	}
	if s := f.device.Stats(); s.LiveBuffers != 8 || s.LiveTransfers != 0 {
		t.Fatalf("unexpected device stats: %+v", s)
	}
}

func TestReadPathPrefersRawDependency(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := caaf.WriteFile(filepath.Join(dir, "crate"+caaf.ExtModel), asset("crate", "props", 1)); err != nil {
		t.Fatalf("write crate: %v", err)
	}
	if err := caaf.WriteFile(filepath.Join(dir, "props"+caaf.ExtModelRaw), asset("props", "", 1)); err != nil {
		t.Fatalf("write raw props: %v", err)
	}
	if err := caaf.WriteFile(filepath.Join(dir, "props"+caaf.ExtModel), asset("props", "", 3)); err != nil {
		t.Fatalf("write packed props: %v", err)
	}

	f := newFixture(t, nil)
	if _, err := f.loader.ReadPath(context.Background(), filepath.Join(dir, "crate"+caaf.ExtModel), f.device.BeginCopyPass()); err != nil {
		t.Fatalf("read path: %v", err)
	}
	props, ok := f.loader.Get("props")
	if !ok || len(props.Meshes) != 1 {
		t.Fatalf("expected the raw props container, got %+v", props)
	}
}

func TestReadPathMissingDependencyDegrades(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "crate"+caaf.ExtModelRaw)
	if err := caaf.WriteFile(path, asset("crate", "ghost", 1)); err != nil {
		t.Fatalf("write crate: %v", err)
	}

	f := newFixture(t, nil)
	if _, err := f.loader.ReadPath(context.Background(), path, f.device.BeginCopyPass()); err != nil {
		t.Fatalf("read path: %v", err)
	}
	crate, _ := f.loader.Get("crate")
	if crate.Dependency != "" || crate.Requires != "ghost" {
		t.Fatalf("dependency fields: %q / %q", crate.Dependency, crate.Requires)
	}
}

func TestReadPathRejectsNonContainer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "junk"+caaf.ExtModelRaw)
	if err := os.WriteFile(path, []byte("not a container, just text"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	f := newFixture(t, nil)
	if _, err := f.loader.ReadPath(context.Background(), path, f.device.BeginCopyPass()); !errors.Is(err, caaf.ErrNotContainer) {
		t.Fatalf("expected ErrNotContainer, got %v", err)
	}
	if f.loader.Len() != 0 {
		t.Fatal("failed read was cached")
	}
}

func TestWritePathRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(o *Options) { o.RetainSource = true })
	want := asset("crate", "", 2)
	f.putDoc(t, want)
	if err := f.load(t, "crate"); err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, ext := range []string{caaf.ExtModel, caaf.ExtModelRaw} {
		path := filepath.Join(t.TempDir(), "out"+ext)
		if err := f.loader.WritePath("crate", path); err != nil {
			t.Fatalf("write %s: %v", ext, err)
		}
		data, err := caaf.ReadFile(path, 0)
		if err != nil {
			t.Fatalf("read back %s: %v", ext, err)
		}
		got, err := caaf.Decode(data)
		if err != nil {
			t.Fatalf("decode %s: %v", ext, err)
		}
		if got.Name != "crate" || len(got.Meshes) != 2 || got.Meshes[1].VertexSize() != want.Meshes[1].VertexSize() {
			t.Fatalf("%s: unexpected document %+v", ext, got)
		}
	}

	if err := f.loader.WritePath("ghost", filepath.Join(t.TempDir(), "x.caaf")); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestWritePathNeedsSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.putDoc(t, asset("crate", "", 1))
	if err := f.load(t, "crate"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := f.loader.WritePath("crate", filepath.Join(t.TempDir(), "crate.caaf")); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}

func TestCreateThenWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	a, err := f.loader.Create("scene", "props")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.loader.Create("scene", ""); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	a.Source.IsDependency = true
	a.Source.Samplers = []caaf.Sampler{{MinFilter: 1, MaxLod: 4}}

	path := filepath.Join(t.TempDir(), "scene"+caaf.ExtModelRaw)
	if err := f.loader.WritePath("scene", path); err != nil {
		t.Fatalf("write: %v", err)
	}

	other := newFixture(t, nil)
	if _, err := other.loader.ReadPath(context.Background(), path, other.device.BeginCopyPass()); err != nil {
		t.Fatalf("read path: %v", err)
	}
	got, ok := other.loader.Get("scene")
	if !ok || !got.IsDependency || got.Requires != "props" || len(got.Samplers) != 1 {
		t.Fatalf("unexpected asset: %+v", got)
	}
}

func TestAssetName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"models/crate.caaf.zst": "crate",
		"/tmp/lit.csaf.zst":     "lit",
		"crate.caaf":            "crate",
		"dir/readme.txt":        "readme.txt",
		"nested/dir/props.caaf": "props",
	}
	for in, want := range cases {
		if got := AssetName(in); got != want {
			t.Fatalf("AssetName(%q): got %q want %q", in, got, want)
		}
	}
}
