package caaf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Fixed on-disk entry and record sizes. Subsection records may be larger than
// these; readers only consume the leading bytes.
const (
	meshEntrySize     = 16
	pipelineEntrySize = 48
	textureEntrySize  = 28
	samplerEntrySize  = 28

	vertexOffsetRecordSize   = 4
	vertexBufferRecordSize   = 12
	vertexAttributeSize      = 12
	colorTargetRecordSize    = 8
	samplerBindingRecordSize = 12
	samplerBindingMinSize    = 9
)

// Entry-relative pointer fields.
const (
	meshVertexOffsetsField = 0
	meshDataField          = 4

	pipelineVertexBuffersField    = 32
	pipelineVertexAttributesField = 36
	pipelineColorTargetsField     = 40
	pipelineSamplerBindingsField  = 44

	textureDataField = 20
)

// Mesh is one draw-call geometry: vertex bytes followed by index bytes in the
// container, plus the start offset of every vertex buffer binding.
type Mesh struct {
	VertexOffsets []uint32
	Vertices      []byte
	Indices       []byte
}

func (m *Mesh) VertexSize() uint32 { return uint32(len(m.Vertices)) }
func (m *Mesh) IndexSize() uint32  { return uint32(len(m.Indices)) }

// Pipeline describes the fixed-function state of a graphics pipeline and the
// vertex layout, blend and sampler bindings it is built with.
type Pipeline struct {
	VertexShader   string
	FragmentShader string

	Primitive      uint8
	Fill           uint8
	Cull           uint8
	FrontFace      uint8
	SampleCount    uint8
	CompareOp      uint8
	StencilBackOp  uint8
	StencilFrontOp uint8
	CompareMask    uint8
	WriteMask      uint8
	Flags          uint16

	DepthBiasConstant float32
	DepthBiasClamp    float32
	DepthBiasSlope    float32
	Props             uint32

	VertexBuffers    []VertexBufferDescription
	VertexAttributes []VertexAttribute
	ColorTargets     []ColorTargetBlend
	SamplerBindings  []TextureSamplerBinding
}

type VertexBufferDescription struct {
	Slot             uint32
	Pitch            uint32
	InstanceStepRate uint32
}

type VertexAttribute struct {
	Location uint16
	Format   uint16
	Slot     uint32
	Offset   uint32
}

type ColorTargetBlend struct {
	SrcColor  uint8
	DstColor  uint8
	ColorOp   uint8
	SrcAlpha  uint8
	DstAlpha  uint8
	AlphaOp   uint8
	WriteMask uint8
	Flags     uint8
}

// TextureSamplerBinding pairs a texture entry with a sampler entry of the
// same container at a shader slot.
type TextureSamplerBinding struct {
	Slot    uint32
	Texture uint16
	Sampler uint16
	Stage   uint8
}

type Texture struct {
	Type      uint8
	Format    uint8
	MipLevels uint16
	Width     uint32
	Height    uint32
	Depth     uint32
	Props     uint32
	Data      []byte
}

type Sampler struct {
	MinFilter     uint8
	MagFilter     uint8
	MipmapMode    uint8
	AddressU      uint8
	AddressV      uint8
	AddressW      uint8
	CompareOp     uint8
	Flags         uint8
	MipLodBias    float32
	MaxAnisotropy float32
	MinLod        float32
	MaxLod        float32
	Props         uint32
}

func decodeMesh(data []byte, entry int) (Mesh, error) {
	b, err := span(data, entry, meshEntrySize)
	if err != nil {
		return Mesh{}, err
	}
	vtxSize := binary.LittleEndian.Uint32(b[8:12])
	idxSize := binary.LittleEndian.Uint32(b[12:16])

	var m Mesh
	if sub, ok, err := nested(data, entry, meshVertexOffsetsField); err != nil {
		return Mesh{}, err
	} else if ok {
		m.VertexOffsets, err = readRecords(data, sub, vertexOffsetRecordSize, func(r []byte) uint32 {
			return binary.LittleEndian.Uint32(r)
		})
		if err != nil {
			return Mesh{}, err
		}
	}

	total := int64(vtxSize) + int64(idxSize)
	if total == 0 {
		return m, nil
	}
	blob, ok, err := nested(data, entry, meshDataField)
	if err != nil {
		return Mesh{}, err
	}
	if !ok || total > int64(len(data)) {
		return Mesh{}, fmt.Errorf("%w: mesh at %d has no room for %d data bytes", ErrCorrupt, entry, total)
	}
	raw, err := span(data, blob, int(total))
	if err != nil {
		return Mesh{}, err
	}
	m.Vertices = raw[:vtxSize:vtxSize]
	m.Indices = raw[vtxSize:]
	return m, nil
}

func decodePipeline(data []byte, entry int, str func(uint16) string) (Pipeline, error) {
	b, err := span(data, entry, pipelineEntrySize)
	if err != nil {
		return Pipeline{}, err
	}
	p := Pipeline{
		VertexShader:      str(binary.LittleEndian.Uint16(b[0:2])),
		FragmentShader:    str(binary.LittleEndian.Uint16(b[2:4])),
		Primitive:         b[4],
		Fill:              b[5],
		Cull:              b[6],
		FrontFace:         b[7],
		SampleCount:       b[8],
		CompareOp:         b[9],
		StencilBackOp:     b[10],
		StencilFrontOp:    b[11],
		CompareMask:       b[12],
		WriteMask:         b[13],
		Flags:             binary.LittleEndian.Uint16(b[14:16]),
		DepthBiasConstant: math.Float32frombits(binary.LittleEndian.Uint32(b[16:20])),
		DepthBiasClamp:    math.Float32frombits(binary.LittleEndian.Uint32(b[20:24])),
		DepthBiasSlope:    math.Float32frombits(binary.LittleEndian.Uint32(b[24:28])),
		Props:             binary.LittleEndian.Uint32(b[28:32]),
	}

	if sub, ok, err := nested(data, entry, pipelineVertexBuffersField); err != nil {
		return Pipeline{}, err
	} else if ok {
		p.VertexBuffers, err = readRecords(data, sub, vertexBufferRecordSize, func(r []byte) VertexBufferDescription {
			return VertexBufferDescription{
				Slot:             binary.LittleEndian.Uint32(r[0:4]),
				Pitch:            binary.LittleEndian.Uint32(r[4:8]),
				InstanceStepRate: binary.LittleEndian.Uint32(r[8:12]),
			}
		})
		if err != nil {
			return Pipeline{}, err
		}
	}

	if sub, ok, err := nested(data, entry, pipelineVertexAttributesField); err != nil {
		return Pipeline{}, err
	} else if ok {
		p.VertexAttributes, err = readRecords(data, sub, vertexAttributeSize, func(r []byte) VertexAttribute {
			return VertexAttribute{
				Location: binary.LittleEndian.Uint16(r[0:2]),
				Format:   binary.LittleEndian.Uint16(r[2:4]),
				Slot:     binary.LittleEndian.Uint32(r[4:8]),
				Offset:   binary.LittleEndian.Uint32(r[8:12]),
			}
		})
		if err != nil {
			return Pipeline{}, err
		}
	}

	if sub, ok, err := nested(data, entry, pipelineColorTargetsField); err != nil {
		return Pipeline{}, err
	} else if ok {
		p.ColorTargets, err = readRecords(data, sub, colorTargetRecordSize, func(r []byte) ColorTargetBlend {
			return ColorTargetBlend{
				SrcColor:  r[0],
				DstColor:  r[1],
				ColorOp:   r[2],
				SrcAlpha:  r[3],
				DstAlpha:  r[4],
				AlphaOp:   r[5],
				WriteMask: r[6],
				Flags:     r[7],
			}
		})
		if err != nil {
			return Pipeline{}, err
		}
	}

	if sub, ok, err := nested(data, entry, pipelineSamplerBindingsField); err != nil {
		return Pipeline{}, err
	} else if ok {
		p.SamplerBindings, err = readRecords(data, sub, samplerBindingMinSize, func(r []byte) TextureSamplerBinding {
			return TextureSamplerBinding{
				Slot:    binary.LittleEndian.Uint32(r[0:4]),
				Texture: binary.LittleEndian.Uint16(r[4:6]),
				Sampler: binary.LittleEndian.Uint16(r[6:8]),
				Stage:   r[8],
			}
		})
		if err != nil {
			return Pipeline{}, err
		}
	}

	return p, nil
}

func decodeTexture(data []byte, entry int) (Texture, error) {
	b, err := span(data, entry, textureEntrySize)
	if err != nil {
		return Texture{}, err
	}
	t := Texture{
		Type:      b[0],
		Format:    b[1],
		MipLevels: binary.LittleEndian.Uint16(b[2:4]),
		Width:     binary.LittleEndian.Uint32(b[4:8]),
		Height:    binary.LittleEndian.Uint32(b[8:12]),
		Depth:     binary.LittleEndian.Uint32(b[12:16]),
		Props:     binary.LittleEndian.Uint32(b[16:20]),
	}
	size := binary.LittleEndian.Uint32(b[24:28])
	if size == 0 {
		return t, nil
	}
	p, ok, err := nested(data, entry, textureDataField)
	if err != nil {
		return Texture{}, err
	}
	if !ok || int64(size) > int64(len(data)) {
		return Texture{}, fmt.Errorf("%w: texture at %d has no room for %d pixel bytes", ErrCorrupt, entry, size)
	}
	t.Data, err = span(data, p, int(size))
	if err != nil {
		return Texture{}, err
	}
	return t, nil
}

func decodeSampler(data []byte, entry int) (Sampler, error) {
	b, err := span(data, entry, samplerEntrySize)
	if err != nil {
		return Sampler{}, err
	}
	return Sampler{
		MinFilter:     b[0],
		MagFilter:     b[1],
		MipmapMode:    b[2],
		AddressU:      b[3],
		AddressV:      b[4],
		AddressW:      b[5],
		CompareOp:     b[6],
		Flags:         b[7],
		MipLodBias:    math.Float32frombits(binary.LittleEndian.Uint32(b[8:12])),
		MaxAnisotropy: math.Float32frombits(binary.LittleEndian.Uint32(b[12:16])),
		MinLod:        math.Float32frombits(binary.LittleEndian.Uint32(b[16:20])),
		MaxLod:        math.Float32frombits(binary.LittleEndian.Uint32(b[20:24])),
		Props:         binary.LittleEndian.Uint32(b[24:28]),
	}, nil
}

// readRecords decodes every record of the packed subsection at start. The
// stored stride must cover at least minSize bytes.
func readRecords[T any](data []byte, start, minSize int, dec func([]byte) T) ([]T, error) {
	n, err := SubEntryCount(data, start)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	size, err := SubEntrySize(data, start)
	if err != nil {
		return nil, err
	}
	if size < minSize {
		return nil, fmt.Errorf("%w: subsection at %d has %d-byte records, need %d", ErrCorrupt, start, size, minSize)
	}
	out := make([]T, n)
	for i := range out {
		p, err := SubEntryPointer(data, start, i)
		if err != nil {
			return nil, err
		}
		r, err := span(data, p, minSize)
		if err != nil {
			return nil, err
		}
		out[i] = dec(r)
	}
	return out, nil
}
