package caaf

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func sampleDocument() *Document {
	pipeline := func(vs, fs string) Pipeline {
		return Pipeline{
			VertexShader:      vs,
			FragmentShader:    fs,
			Primitive:         3,
			Fill:              1,
			Cull:              2,
			FrontFace:         1,
			SampleCount:       4,
			CompareOp:         5,
			StencilBackOp:     1,
			StencilFrontOp:    2,
			CompareMask:       0xFF,
			WriteMask:         0x0F,
			Flags:             PipelineDepthTest | PipelineDepthWrite,
			DepthBiasConstant: 1.25,
			DepthBiasClamp:    0.5,
			DepthBiasSlope:    -2,
			Props:             42,
			VertexBuffers:     []VertexBufferDescription{{Slot: 0, Pitch: 32, InstanceStepRate: 0}},
			VertexAttributes: []VertexAttribute{
				{Location: 0, Format: 3, Slot: 0, Offset: 0},
				{Location: 1, Format: 2, Slot: 0, Offset: 12},
			},
			ColorTargets:    []ColorTargetBlend{{SrcColor: 1, DstColor: 2, ColorOp: 1, SrcAlpha: 1, DstAlpha: 2, AlphaOp: 1, WriteMask: 0xF, Flags: BlendEnable}},
			SamplerBindings: []TextureSamplerBinding{{Slot: 0, Texture: 0, Sampler: 0, Stage: 1}},
		}
	}
	return &Document{
		Name:       "crate",
		Dependency: "props",
		Meshes: []Mesh{
			{VertexOffsets: []uint32{0}, Vertices: []byte{1, 2, 3, 4, 5, 6, 7, 8}, Indices: []byte{0, 0, 1, 0, 2, 0}},
			{VertexOffsets: []uint32{0, 16}, Vertices: make([]byte, 96), Indices: []byte{9, 9}},
		},
		Pipelines: []Pipeline{pipeline("lit.vert", "lit.frag"), pipeline("lit.vert", "unlit.frag")},
		Textures: []Texture{{
			Type: 1, Format: 7, MipLevels: 1, Width: 2, Height: 2, Depth: 1,
			Data: []byte{255, 0, 0, 255, 0, 255, 0, 255, 0, 0, 255, 255, 255, 255, 255, 255},
		}},
		Samplers: []Sampler{{
			MinFilter: 1, MagFilter: 1, MipmapMode: 1, AddressU: 2, AddressV: 2, AddressW: 2,
			Flags: SamplerAnisotropy, MaxAnisotropy: 8, MaxLod: 1000,
		}},
	}
}

func encodeSample(t *testing.T) []byte {
	t.Helper()
	data, err := Encode(sampleDocument())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func sectionOf(t *testing.T, data []byte, kind SectionKind) int {
	t.Helper()
	h, err := ReadHeader(data)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	for i := 0; i < int(h.SectionCount); i++ {
		start, err := SectionStart(data, i)
		if err != nil {
			t.Fatalf("section %d: %v", i, err)
		}
		if IdentifySection(data, start) == kind {
			return start
		}
	}
	t.Fatalf("no %s section", kind)
	return 0
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	want := sampleDocument()
	data := encodeSample(t)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != want.Name || got.Dependency != want.Dependency || got.IsDependency {
		t.Fatalf("identity mismatch: got %q -> %q (dep=%v)", got.Name, got.Dependency, got.IsDependency)
	}
	if len(got.Meshes) != len(want.Meshes) {
		t.Fatalf("mesh count: got %d want %d", len(got.Meshes), len(want.Meshes))
	}
	for i := range want.Meshes {
		if got.Meshes[i].VertexSize() != want.Meshes[i].VertexSize() || got.Meshes[i].IndexSize() != want.Meshes[i].IndexSize() {
			t.Fatalf("mesh %d sizes: got %d/%d want %d/%d", i,
				got.Meshes[i].VertexSize(), got.Meshes[i].IndexSize(),
				want.Meshes[i].VertexSize(), want.Meshes[i].IndexSize())
		}
	}
	if !reflect.DeepEqual(got.Meshes, want.Meshes) {
		t.Fatalf("meshes mismatch:\n got %+v\nwant %+v", got.Meshes, want.Meshes)
	}
	if !reflect.DeepEqual(got.Pipelines, want.Pipelines) {
		t.Fatalf("pipelines mismatch:\n got %+v\nwant %+v", got.Pipelines, want.Pipelines)
	}
	if !reflect.DeepEqual(got.Textures, want.Textures) {
		t.Fatalf("textures mismatch:\n got %+v\nwant %+v", got.Textures, want.Textures)
	}
	if !reflect.DeepEqual(got.Samplers, want.Samplers) {
		t.Fatalf("samplers mismatch:\n got %+v\nwant %+v", got.Samplers, want.Samplers)
	}
	if len(got.Skipped) != 0 {
		t.Fatalf("unexpected skipped sections: %+v", got.Skipped)
	}
}

func TestEncodeWithoutDependency(t *testing.T) {
	t.Parallel()

	data, err := Encode(&Document{Name: "lonely", IsDependency: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	h, err := ReadHeader(data)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if h.DependencyIndex != NoIndex || h.SectionCount != 1 {
		t.Fatalf("unexpected header: %+v", h)
	}
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Name != "lonely" || doc.Dependency != "" || !doc.IsDependency {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestDecodeCountMismatch(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	doc.Meshes = append(doc.Meshes, doc.Meshes[0])
	doc.Pipelines = append(doc.Pipelines, doc.Pipelines[0])
	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Three meshes, two pipelines.
	gfxp := sectionOf(t, data, SectionPipeline)
	binary.LittleEndian.PutUint32(data[gfxp+4:], 2)

	if _, err := Decode(data); !errors.Is(err, ErrCountMismatch) {
		t.Fatalf("expected ErrCountMismatch, got %v", err)
	}
	if _, err := Encode(&Document{Meshes: make([]Mesh, 3), Pipelines: make([]Pipeline, 2)}); !errors.Is(err, ErrCountMismatch) {
		t.Fatalf("expected Encode to reject mismatched counts, got %v", err)
	}
}

func TestDecodeStringTablePlacement(t *testing.T) {
	t.Parallel()

	t.Run("missing", func(t *testing.T) {
		data := encodeSample(t)
		strt := sectionOf(t, data, SectionStrings)
		copy(data[strt:], "XXXX")
		if _, err := Decode(data); !errors.Is(err, ErrMissingStringTable) {
			t.Fatalf("expected ErrMissingStringTable, got %v", err)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		data := encodeSample(t)
		tex := sectionOf(t, data, SectionTexture)
		copy(data[tex:], "STRT")
		if _, err := Decode(data); !errors.Is(err, ErrDuplicateStringTable) {
			t.Fatalf("expected ErrDuplicateStringTable, got %v", err)
		}
	})
}

func TestDecodeSkipsUnknownSections(t *testing.T) {
	t.Parallel()

	data := encodeSample(t)
	tex := sectionOf(t, data, SectionTexture)
	copy(data[tex:], "ANIM")

	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Skipped) != 1 || doc.Skipped[0].Tag != "ANIM" || doc.Skipped[0].Offset != tex {
		t.Fatalf("unexpected skipped sections: %+v", doc.Skipped)
	}
	if len(doc.Textures) != 0 {
		t.Fatalf("textures decoded from skipped section: %d", len(doc.Textures))
	}
	if len(doc.Meshes) != 2 || len(doc.Samplers) != 1 {
		t.Fatalf("sections after the unknown one were not decoded: %d meshes, %d samplers", len(doc.Meshes), len(doc.Samplers))
	}
}

func TestDecodeRejectsBadHeaders(t *testing.T) {
	t.Parallel()

	cases := map[string]func([]byte) []byte{
		"magic":    func(b []byte) []byte { b[0] = 'X'; return b },
		"version":  func(b []byte) []byte { b[4] = Version + 1; return b },
		"sections": func(b []byte) []byte { binary.LittleEndian.PutUint16(b[6:], 0); return b },
		"short":    func(b []byte) []byte { return b[:HeaderSize-1] },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			data := mutate(encodeSample(t))
			if _, err := Decode(data); !errors.Is(err, ErrNotContainer) {
				t.Fatalf("expected ErrNotContainer, got %v", err)
			}
		})
	}
}

func TestDecodeRejectsWildMeshPointer(t *testing.T) {
	t.Parallel()

	data := encodeSample(t)
	mesh := sectionOf(t, data, SectionMesh)
	entry, err := EntryPointer(data, mesh, 0)
	if err != nil {
		t.Fatalf("entry pointer: %v", err)
	}
	binary.LittleEndian.PutUint32(data[entry+meshDataField:], uint32(len(data)))

	if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
