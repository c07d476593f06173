package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/caaf/pkg/caaf"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadManifestBuildsDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	vertices := bytes.Repeat([]byte{1, 2, 3, 4}, 6)
	indices := []byte{0, 0, 1, 0, 2, 0}
	pixels := bytes.Repeat([]byte{0xff}, 16)
	writeFile(t, filepath.Join(dir, "crate.vtx"), vertices)
	writeFile(t, filepath.Join(dir, "crate.idx"), indices)
	writeFile(t, filepath.Join(dir, "crate.rgba"), pixels)
	path := filepath.Join(dir, "crate.json")
	writeFile(t, path, []byte(`{
  "name": "crate",
  "dependency": "props",
  "meshes": [{"vertex_offsets": [0, 12], "vertices": "crate.vtx", "indices": "crate.idx"}],
  "pipelines": [{
    "VertexShader": "lit.vert",
    "FragmentShader": "lit.frag",
    "Flags": 12,
    "ColorTargets": [{"SrcColor": 1, "DstColor": 2, "Flags": 1}]
  }],
  "textures": [{"Width": 2, "Height": 2, "Depth": 1, "MipLevels": 1, "data": "crate.rgba"}],
  "samplers": [{"MinFilter": 1, "MaxLod": 8}]
}`))

	doc, err := readManifest(path)
	if err != nil {
		t.Fatalf("readManifest returned error: %v", err)
	}
	if doc.Name != "crate" || doc.Dependency != "props" {
		t.Fatalf("unexpected names: %q %q", doc.Name, doc.Dependency)
	}
	if len(doc.Meshes) != 1 || !bytes.Equal(doc.Meshes[0].Vertices, vertices) || !bytes.Equal(doc.Meshes[0].Indices, indices) {
		t.Fatalf("unexpected meshes: %+v", doc.Meshes)
	}
	if got := doc.Pipelines[0]; got.FragmentShader != "lit.frag" || got.Flags != caaf.PipelineDepthTest|caaf.PipelineDepthWrite {
		t.Fatalf("unexpected pipeline: %+v", got)
	}
	if doc.Textures[0].Width != 2 || !bytes.Equal(doc.Textures[0].Data, pixels) {
		t.Fatalf("unexpected texture: %+v", doc.Textures[0])
	}
	if doc.Samplers[0].MaxLod != 8 {
		t.Fatalf("sampler max lod: got %v want 8", doc.Samplers[0].MaxLod)
	}

	out, err := resolvePackOut(path, "", doc.Name, false)
	if err != nil {
		t.Fatalf("resolvePackOut: %v", err)
	}
	if want := filepath.Join(dir, "crate"+caaf.ExtModel); out != want {
		t.Fatalf("output path: got %q want %q", out, want)
	}
	if err := caaf.WriteFile(out, doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := inspectFile(out, caaf.DecompressMemoryMax)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !info.Compressed || info.Name != "crate" || len(info.Meshes) != 1 || info.Meshes[0].VertexSize != 24 {
		t.Fatalf("unexpected inspection: %+v", info)
	}
	if len(info.Pipelines) != 1 || info.Pipelines[0].ColorTargets != 1 || info.Textures[0].DataSize != 16 {
		t.Fatalf("unexpected inspection: %+v", info)
	}
}

func TestReadManifestErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := map[string]string{
		"nameless.json": `{"meshes": []}`,
		"broken.json":   `{"name": `,
		"missing.json":  `{"name": "x", "meshes": [{"vertices": "absent.vtx"}], "pipelines": [{}]}`,
	}
	for file, body := range cases {
		path := filepath.Join(dir, file)
		writeFile(t, path, []byte(body))
		if _, err := readManifest(path); err == nil {
			t.Fatalf("%s: expected error", file)
		}
	}
}

func TestResolvePackOut(t *testing.T) {
	t.Parallel()

	t.Run("explicit output wins", func(t *testing.T) {
		t.Parallel()
		outPath := filepath.Join(t.TempDir(), "nested", "crate.caaf")
		got, err := resolvePackOut("manifest.json", outPath, "crate", false)
		if err != nil {
			t.Fatalf("resolvePackOut returned error: %v", err)
		}
		if got != filepath.Clean(outPath) {
			t.Fatalf("unexpected output path: got %q want %q", got, filepath.Clean(outPath))
		}
		if _, err := os.Stat(filepath.Dir(got)); err != nil {
			t.Fatalf("expected output directory to exist: %v", err)
		}
	})

	t.Run("raw suffix", func(t *testing.T) {
		t.Parallel()
		got, err := resolvePackOut(filepath.Join("in", "m.json"), "", "crate", true)
		if err != nil {
			t.Fatalf("resolvePackOut returned error: %v", err)
		}
		if want := filepath.Join("in", "crate"+caaf.ExtModelRaw); got != want {
			t.Fatalf("unexpected output path: got %q want %q", got, want)
		}
	})

	t.Run("name escaping the directory", func(t *testing.T) {
		t.Parallel()
		if _, err := resolvePackOut("m.json", "", "../crate", false); err == nil {
			t.Fatal("expected error for non-local name")
		}
	})
}
