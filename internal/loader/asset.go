package loader

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samcharles93/caaf/internal/gpu"
	"github.com/samcharles93/caaf/pkg/caaf"
)

// CyclePolicy decides what a load does when it reaches an asset that is
// still being built further up the same dependency chain.
type CyclePolicy uint8

const (
	// CycleTolerate links the dependency to the in-progress asset and stops
	// recursing. Both assets end up cached exactly once.
	CycleTolerate CyclePolicy = iota
	// CycleReject fails the load with ErrDependencyCycle and evicts every
	// asset of the chain.
	CycleReject
)

func (p CyclePolicy) String() string {
	switch p {
	case CycleTolerate:
		return "tolerate"
	case CycleReject:
		return "reject"
	default:
		return fmt.Sprintf("CyclePolicy(%d)", p)
	}
}

// ParseCyclePolicy accepts "tolerate" and "reject". The empty string selects
// CycleTolerate.
func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tolerate":
		return CycleTolerate, nil
	case "reject":
		return CycleReject, nil
	default:
		return 0, fmt.Errorf("loader: unknown cycle policy %q", s)
	}
}

// Mesh is an uploaded mesh: one vertex buffer and, when the container has
// index bytes, one index buffer.
type Mesh struct {
	Vertex gpu.Buffer
	Index  gpu.Buffer

	VertexSize    uint32
	IndexSize     uint32
	VertexOffsets []uint32
}

// Asset is a loaded container.
type Asset struct {
	// ID changes every time the asset is built, so a reload is distinguishable
	// from the load it replaced.
	ID   uuid.UUID
	Name string

	// Requires is the dependency name declared by the container. Dependency
	// is the cache handle of the resolved dependency and is empty when the
	// dependency could not be loaded.
	Requires     string
	Dependency   string
	IsDependency bool

	// Meshes[i] draws with Pipelines[i]. Meshes that could not be uploaded
	// are nil.
	Meshes    []*Mesh
	Pipelines []caaf.Pipeline
	Textures  []caaf.Texture
	Samplers  []caaf.Sampler
	Skipped   []caaf.SkippedSection

	// Digest is the BLAKE3 hash of the uncompressed container.
	Digest [32]byte

	// Source is the decoded document, kept when Options.RetainSource is set
	// and for assets made with Create.
	Source *caaf.Document

	loading bool
}

// Loading reports whether the asset is still being built. It is only ever
// observed through a tolerated dependency cycle.
func (a *Asset) Loading() bool { return a.loading }

// DigestHex returns Digest in hex.
func (a *Asset) DigestHex() string { return hex.EncodeToString(a.Digest[:]) }

// Uploaded counts meshes with live buffers.
func (a *Asset) Uploaded() int {
	n := 0
	for _, m := range a.Meshes {
		if m != nil {
			n++
		}
	}
	return n
}

func (a *Asset) release(b gpu.Backend) {
	for i, m := range a.Meshes {
		if m == nil {
			continue
		}
		if m.Vertex != nil {
			b.ReleaseBuffer(m.Vertex)
		}
		if m.Index != nil {
			b.ReleaseBuffer(m.Index)
		}
		a.Meshes[i] = nil
	}
}

// cloneDocument deep-copies the byte payloads of doc, which may alias a
// mapped file.
func cloneDocument(doc *caaf.Document) *caaf.Document {
	out := *doc
	out.Meshes = make([]caaf.Mesh, len(doc.Meshes))
	for i, m := range doc.Meshes {
		out.Meshes[i] = caaf.Mesh{
			VertexOffsets: append([]uint32(nil), m.VertexOffsets...),
			Vertices:      append([]byte(nil), m.Vertices...),
			Indices:       append([]byte(nil), m.Indices...),
		}
	}
	out.Textures = cloneTextures(doc.Textures)
	out.Pipelines = append([]caaf.Pipeline(nil), doc.Pipelines...)
	out.Samplers = append([]caaf.Sampler(nil), doc.Samplers...)
	out.Skipped = append([]caaf.SkippedSection(nil), doc.Skipped...)
	return &out
}

func cloneTextures(in []caaf.Texture) []caaf.Texture {
	if in == nil {
		return nil
	}
	out := make([]caaf.Texture, len(in))
	for i, t := range in {
		t.Data = append([]byte(nil), t.Data...)
		out[i] = t
	}
	return out
}
