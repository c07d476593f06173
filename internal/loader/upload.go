package loader

import (
	"errors"
	"fmt"

	"github.com/samcharles93/caaf/internal/gpu"
	"github.com/samcharles93/caaf/pkg/caaf"
)

var errNoVertices = errors.New("mesh has no vertex data")

// upload stages one mesh: a transfer buffer holding the vertex bytes followed
// by the index bytes, a vertex and an index destination buffer, and two
// uploads from the shared staging buffer. The staging buffer is released
// immediately; the backend keeps it alive for the queued uploads.
func (l *Loader) upload(asset string, index int, m *caaf.Mesh, pass gpu.CopyPass) (*Mesh, error) {
	vsize, isize := m.VertexSize(), m.IndexSize()
	if vsize == 0 || len(m.VertexOffsets) == 0 {
		return nil, errNoVertices
	}
	total := uint64(vsize) + uint64(isize)
	if total > uint64(^uint32(0)) {
		return nil, fmt.Errorf("mesh of %d bytes does not fit a transfer buffer", total)
	}

	b := l.opts.Backend
	tb, err := b.CreateTransferBuffer(uint32(total))
	if err != nil {
		return nil, fmt.Errorf("staging buffer: %w", err)
	}
	defer b.ReleaseTransferBuffer(tb)

	staging, err := b.MapTransferBuffer(tb)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	copy(staging, m.Vertices)
	copy(staging[vsize:], m.Indices)
	b.UnmapTransferBuffer(tb)

	label := fmt.Sprintf("%s/mesh%d", asset, index)
	vb, err := b.CreateBuffer(gpu.BufferDescriptor{Label: label + " vertex", Usage: gpu.BufferUsageVertex, Size: vsize})
	if err != nil {
		return nil, fmt.Errorf("vertex buffer: %w", err)
	}
	var ib gpu.Buffer
	if isize > 0 {
		ib, err = b.CreateBuffer(gpu.BufferDescriptor{Label: label + " index", Usage: gpu.BufferUsageIndex, Size: isize})
		if err != nil {
			b.ReleaseBuffer(vb)
			return nil, fmt.Errorf("index buffer: %w", err)
		}
	}

	pass.Upload(gpu.TransferLocation{TransferBuffer: tb}, gpu.BufferRegion{Buffer: vb, Size: vsize})
	if ib != nil {
		pass.Upload(gpu.TransferLocation{TransferBuffer: tb, Offset: vsize}, gpu.BufferRegion{Buffer: ib, Size: isize})
	}

	return &Mesh{
		Vertex:        vb,
		Index:         ib,
		VertexSize:    vsize,
		IndexSize:     isize,
		VertexOffsets: append([]uint32(nil), m.VertexOffsets...),
	}, nil
}
