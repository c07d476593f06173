package caaf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const encodeAlign = 4

// Encode lays out doc as an uncompressed container. Sections are written in
// the order strings, meshes, pipelines, textures, samplers; empty sections
// other than the string table are omitted.
func Encode(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("caaf: nil document")
	}
	if len(doc.Meshes) > 0 && len(doc.Pipelines) > 0 && len(doc.Meshes) != len(doc.Pipelines) {
		return nil, fmt.Errorf("%w: %d meshes, %d pipelines", ErrCountMismatch, len(doc.Meshes), len(doc.Pipelines))
	}

	var st stringTable
	nameIdx := st.add(doc.Name)
	depIdx := NoIndex
	if doc.Dependency != "" {
		depIdx = st.add(doc.Dependency)
	}
	shaders := make([][2]uint16, len(doc.Pipelines))
	for i := range doc.Pipelines {
		shaders[i] = [2]uint16{st.ref(doc.Pipelines[i].VertexShader), st.ref(doc.Pipelines[i].FragmentShader)}
	}
	if len(st.values) >= int(NoIndex) {
		return nil, fmt.Errorf("caaf: %d strings exceed the string table limit", len(st.values))
	}

	kinds := []SectionKind{SectionStrings}
	if len(doc.Meshes) > 0 {
		kinds = append(kinds, SectionMesh)
	}
	if len(doc.Pipelines) > 0 {
		kinds = append(kinds, SectionPipeline)
	}
	if len(doc.Textures) > 0 {
		kinds = append(kinds, SectionTexture)
	}
	if len(doc.Samplers) > 0 {
		kinds = append(kinds, SectionSampler)
	}

	b := &builder{}
	b.grow(SectionListPos)
	dir := b.grow(4 * len(kinds))

	hdr := Header{
		Version:         Version,
		SectionCount:    uint16(len(kinds)),
		NameIndex:       nameIdx,
		DependencyIndex: depIdx,
	}
	copy(hdr.Magic[:], Magic)
	if doc.IsDependency {
		hdr.IsDependency = 1
	}
	encodeHeader(b.buf, hdr)

	for i, kind := range kinds {
		var err error
		switch kind {
		case SectionStrings:
			err = b.section(dir, i, kind, len(st.values), func(entry, j int) error {
				b.align()
				off := b.grow(len(st.values[j]) + 1)
				copy(b.buf[off:], st.values[j])
				return b.link(entry, off)
			}, 0)
		case SectionMesh:
			err = b.section(dir, i, kind, len(doc.Meshes), func(entry, j int) error {
				return b.mesh(entry, &doc.Meshes[j])
			}, meshEntrySize)
		case SectionPipeline:
			err = b.section(dir, i, kind, len(doc.Pipelines), func(entry, j int) error {
				return b.pipeline(entry, &doc.Pipelines[j], shaders[j])
			}, pipelineEntrySize)
		case SectionTexture:
			err = b.section(dir, i, kind, len(doc.Textures), func(entry, j int) error {
				return b.texture(entry, &doc.Textures[j])
			}, textureEntrySize)
		case SectionSampler:
			err = b.section(dir, i, kind, len(doc.Samplers), func(entry, j int) error {
				b.sampler(entry, &doc.Samplers[j])
				return nil
			}, samplerEntrySize)
		}
		if err != nil {
			return nil, err
		}
	}

	if len(b.buf) > math.MaxInt32 {
		return nil, fmt.Errorf("caaf: container of %d bytes exceeds 32-bit addressing", len(b.buf))
	}
	return b.buf, nil
}

type stringTable struct {
	values []string
	index  map[string]uint16
}

func (st *stringTable) add(s string) uint16 {
	if st.index == nil {
		st.index = make(map[string]uint16)
	}
	if i, ok := st.index[s]; ok {
		return i
	}
	i := uint16(len(st.values))
	st.values = append(st.values, s)
	st.index[s] = i
	return i
}

// ref is add for optional references: "" encodes as NoIndex.
func (st *stringTable) ref(s string) uint16 {
	if s == "" {
		return NoIndex
	}
	return st.add(s)
}

type builder struct {
	buf []byte
}

func (b *builder) grow(n int) int {
	off := len(b.buf)
	b.buf = append(b.buf, make([]byte, n)...)
	return off
}

func (b *builder) align() {
	if mod := len(b.buf) % encodeAlign; mod != 0 {
		b.grow(encodeAlign - mod)
	}
}

// link stores at slot the delta that makes it point at target.
func (b *builder) link(slot, target int) error {
	delta := int64(target) - int64(slot)
	if delta < math.MinInt32 || delta > math.MaxInt32 {
		return fmt.Errorf("caaf: offset %d does not fit 32 bits", delta)
	}
	binary.LittleEndian.PutUint32(b.buf[slot:], uint32(int32(delta)))
	return nil
}

// section writes an indexed section header and offset table at the end of the
// buffer and records it in directory slot i. When entrySize is non-zero a fixed
// entry is reserved for every index and its offset is passed to fill; otherwise
// fill receives the offset table slot and links it itself.
func (b *builder) section(dir, i int, kind SectionKind, n int, fill func(entry, j int) error, entrySize int) error {
	if uint64(n) > math.MaxUint32 {
		return fmt.Errorf("caaf: %d %s entries exceed the section limit", n, kind)
	}
	b.align()
	start := b.grow(SectionHeaderSize)
	binary.LittleEndian.PutUint32(b.buf[dir+4*i:], uint32(start))
	copy(b.buf[start:start+4], kind.Tag())
	binary.LittleEndian.PutUint32(b.buf[start+4:], uint32(n))
	table := b.grow(4 * n)

	for j := 0; j < n; j++ {
		slot := table + 4*j
		if entrySize == 0 {
			if err := fill(slot, j); err != nil {
				return err
			}
			continue
		}
		b.align()
		entry := b.grow(entrySize)
		if err := b.link(slot, entry); err != nil {
			return err
		}
		if err := fill(entry, j); err != nil {
			return err
		}
	}
	return nil
}

// records appends a packed subsection and links the entry field to it. Empty
// subsections are left absent.
func (b *builder) records(entry, field, n, size int, put func(r []byte, i int)) error {
	if n == 0 {
		return nil
	}
	if n > math.MaxUint16 {
		return fmt.Errorf("caaf: %d records exceed the subsection limit", n)
	}
	b.align()
	start := b.grow(SubsectionHeaderSize + n*size)
	binary.LittleEndian.PutUint16(b.buf[start:], uint16(n))
	binary.LittleEndian.PutUint16(b.buf[start+2:], uint16(size))
	for i := 0; i < n; i++ {
		off := start + SubsectionHeaderSize + i*size
		put(b.buf[off:off+size], i)
	}
	return b.link(entry+field, start)
}

func (b *builder) mesh(entry int, m *Mesh) error {
	if uint64(len(m.Vertices))+uint64(len(m.Indices)) > math.MaxUint32 {
		return errors.New("caaf: mesh data exceeds 32-bit size")
	}
	binary.LittleEndian.PutUint32(b.buf[entry+8:], m.VertexSize())
	binary.LittleEndian.PutUint32(b.buf[entry+12:], m.IndexSize())

	err := b.records(entry, meshVertexOffsetsField, len(m.VertexOffsets), vertexOffsetRecordSize, func(r []byte, i int) {
		binary.LittleEndian.PutUint32(r, m.VertexOffsets[i])
	})
	if err != nil {
		return err
	}

	total := len(m.Vertices) + len(m.Indices)
	if total == 0 {
		return nil
	}
	b.align()
	blob := b.grow(total)
	copy(b.buf[blob:], m.Vertices)
	copy(b.buf[blob+len(m.Vertices):], m.Indices)
	return b.link(entry+meshDataField, blob)
}

func (b *builder) pipeline(entry int, p *Pipeline, shaders [2]uint16) error {
	e := b.buf[entry : entry+pipelineEntrySize]
	binary.LittleEndian.PutUint16(e[0:2], shaders[0])
	binary.LittleEndian.PutUint16(e[2:4], shaders[1])
	e[4] = p.Primitive
	e[5] = p.Fill
	e[6] = p.Cull
	e[7] = p.FrontFace
	e[8] = p.SampleCount
	e[9] = p.CompareOp
	e[10] = p.StencilBackOp
	e[11] = p.StencilFrontOp
	e[12] = p.CompareMask
	e[13] = p.WriteMask
	binary.LittleEndian.PutUint16(e[14:16], p.Flags)
	binary.LittleEndian.PutUint32(e[16:20], math.Float32bits(p.DepthBiasConstant))
	binary.LittleEndian.PutUint32(e[20:24], math.Float32bits(p.DepthBiasClamp))
	binary.LittleEndian.PutUint32(e[24:28], math.Float32bits(p.DepthBiasSlope))
	binary.LittleEndian.PutUint32(e[28:32], p.Props)

	// e aliases b.buf and is invalid once records grows the buffer.
	if err := b.records(entry, pipelineVertexBuffersField, len(p.VertexBuffers), vertexBufferRecordSize, func(r []byte, i int) {
		v := p.VertexBuffers[i]
		binary.LittleEndian.PutUint32(r[0:4], v.Slot)
		binary.LittleEndian.PutUint32(r[4:8], v.Pitch)
		binary.LittleEndian.PutUint32(r[8:12], v.InstanceStepRate)
	}); err != nil {
		return err
	}
	if err := b.records(entry, pipelineVertexAttributesField, len(p.VertexAttributes), vertexAttributeSize, func(r []byte, i int) {
		a := p.VertexAttributes[i]
		binary.LittleEndian.PutUint16(r[0:2], a.Location)
		binary.LittleEndian.PutUint16(r[2:4], a.Format)
		binary.LittleEndian.PutUint32(r[4:8], a.Slot)
		binary.LittleEndian.PutUint32(r[8:12], a.Offset)
	}); err != nil {
		return err
	}
	if err := b.records(entry, pipelineColorTargetsField, len(p.ColorTargets), colorTargetRecordSize, func(r []byte, i int) {
		c := p.ColorTargets[i]
		r[0], r[1], r[2], r[3] = c.SrcColor, c.DstColor, c.ColorOp, c.SrcAlpha
		r[4], r[5], r[6], r[7] = c.DstAlpha, c.AlphaOp, c.WriteMask, c.Flags
	}); err != nil {
		return err
	}
	return b.records(entry, pipelineSamplerBindingsField, len(p.SamplerBindings), samplerBindingRecordSize, func(r []byte, i int) {
		s := p.SamplerBindings[i]
		binary.LittleEndian.PutUint32(r[0:4], s.Slot)
		binary.LittleEndian.PutUint16(r[4:6], s.Texture)
		binary.LittleEndian.PutUint16(r[6:8], s.Sampler)
		r[8] = s.Stage
	})
}

func (b *builder) texture(entry int, t *Texture) error {
	if uint64(len(t.Data)) > math.MaxUint32 {
		return errors.New("caaf: texture data exceeds 32-bit size")
	}
	e := b.buf[entry : entry+textureEntrySize]
	e[0] = t.Type
	e[1] = t.Format
	binary.LittleEndian.PutUint16(e[2:4], t.MipLevels)
	binary.LittleEndian.PutUint32(e[4:8], t.Width)
	binary.LittleEndian.PutUint32(e[8:12], t.Height)
	binary.LittleEndian.PutUint32(e[12:16], t.Depth)
	binary.LittleEndian.PutUint32(e[16:20], t.Props)
	binary.LittleEndian.PutUint32(e[24:28], uint32(len(t.Data)))
	if len(t.Data) == 0 {
		return nil
	}
	b.align()
	off := b.grow(len(t.Data))
	copy(b.buf[off:], t.Data)
	return b.link(entry+textureDataField, off)
}

func (b *builder) sampler(entry int, s *Sampler) {
	e := b.buf[entry : entry+samplerEntrySize]
	e[0], e[1], e[2], e[3] = s.MinFilter, s.MagFilter, s.MipmapMode, s.AddressU
	e[4], e[5], e[6], e[7] = s.AddressV, s.AddressW, s.CompareOp, s.Flags
	binary.LittleEndian.PutUint32(e[8:12], math.Float32bits(s.MipLodBias))
	binary.LittleEndian.PutUint32(e[12:16], math.Float32bits(s.MaxAnisotropy))
	binary.LittleEndian.PutUint32(e[16:20], math.Float32bits(s.MinLod))
	binary.LittleEndian.PutUint32(e[20:24], math.Float32bits(s.MaxLod))
	binary.LittleEndian.PutUint32(e[24:28], s.Props)
}
