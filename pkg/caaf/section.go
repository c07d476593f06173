package caaf

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SectionKind identifies the payload of a section by its 4-byte tag.
type SectionKind uint8

const (
	SectionUnknown SectionKind = iota
	SectionStrings
	SectionMesh
	SectionPipeline
	SectionTexture
	SectionSampler
)

var sectionTags = [...]string{
	SectionStrings:  "STRT",
	SectionMesh:     "MESH",
	SectionPipeline: "GFXP",
	SectionTexture:  "TEXD",
	SectionSampler:  "SAMP",
}

// Tag returns the on-disk tag of k. Unknown kinds have no tag.
func (k SectionKind) Tag() string {
	if k == SectionUnknown || int(k) >= len(sectionTags) {
		return ""
	}
	return sectionTags[k]
}

func (k SectionKind) String() string {
	switch k {
	case SectionStrings:
		return "strings"
	case SectionMesh:
		return "mesh"
	case SectionPipeline:
		return "pipeline"
	case SectionTexture:
		return "texture"
	case SectionSampler:
		return "sampler"
	default:
		return "unknown"
	}
}

// SectionStart returns the container offset of section index, read from the
// section directory. Directory offsets are container-relative.
func SectionStart(data []byte, index int) (int, error) {
	if index < 0 {
		return 0, fmt.Errorf("%w: negative section index %d", ErrCorrupt, index)
	}
	off, err := readU32(data, SectionListPos+4*index)
	if err != nil {
		return 0, err
	}
	if int64(off)+SectionHeaderSize > int64(len(data)) {
		return 0, fmt.Errorf("%w: section %d at %d out of bounds", ErrCorrupt, index, off)
	}
	return int(off), nil
}

// IdentifySection decodes the type tag at start. Unrecognised or unreadable
// tags yield SectionUnknown so callers can skip the section.
func IdentifySection(data []byte, start int) SectionKind {
	tag, err := span(data, start, 4)
	if err != nil {
		return SectionUnknown
	}
	for k := SectionStrings; int(k) < len(sectionTags); k++ {
		if string(tag) == sectionTags[k] {
			return k
		}
	}
	return SectionUnknown
}

// EntryCount returns the number of entries of the indexed section at start.
// The offset table must fit inside data.
func EntryCount(data []byte, start int) (int, error) {
	n, err := readU32(data, start+4)
	if err != nil {
		return 0, err
	}
	tableEnd := int64(start) + SectionHeaderSize + 4*int64(n)
	if tableEnd > int64(len(data)) {
		return 0, fmt.Errorf("%w: offset table of section at %d out of bounds", ErrCorrupt, start)
	}
	return int(n), nil
}

// EntryPointer resolves entry index of the indexed section at start. The
// stored value is a signed delta from the address of its own slot, so entries
// may be laid out in any physical order.
func EntryPointer(data []byte, start, index int) (int, error) {
	slot := start + SectionHeaderSize + 4*index
	delta, err := readI32(data, slot)
	if err != nil {
		return 0, err
	}
	return resolve(data, slot, delta)
}

// SubEntryCount returns the record count of the packed subsection at start.
func SubEntryCount(data []byte, start int) (int, error) {
	n, err := readU16(data, start)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SubEntrySize returns the per-record stride stored in the subsection header.
func SubEntrySize(data []byte, start int) (int, error) {
	n, err := readU16(data, start+2)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SubEntryPointer returns the offset of record index of the packed subsection
// at start. The stride comes from the subsection header, never from the
// reader's idea of the record size.
func SubEntryPointer(data []byte, start, index int) (int, error) {
	size, err := SubEntrySize(data, start)
	if err != nil {
		return 0, err
	}
	off := int64(start) + SubsectionHeaderSize + int64(index)*int64(size)
	if off < 0 || off > int64(len(data)) {
		return 0, fmt.Errorf("%w: record %d of subsection at %d out of bounds", ErrCorrupt, index, start)
	}
	return int(off), nil
}

// ReadString returns string index of the string table at strSec. limit is
// EntryCount(strSec)-1; indices beyond it (including NoIndex) yield "".
func ReadString(data []byte, strSec, index, limit int) string {
	if index > limit || index < 0 {
		return ""
	}
	p, err := EntryPointer(data, strSec, index)
	if err != nil {
		return ""
	}
	end := bytes.IndexByte(data[p:], 0)
	if end < 0 {
		return ""
	}
	return string(data[p : p+end])
}

// resolve adds a self-relative delta to base and checks the result.
func resolve(data []byte, base int, delta int32) (int, error) {
	p := int64(base) + int64(delta)
	if p < 0 || p >= int64(len(data)) {
		return 0, fmt.Errorf("%w: pointer %d+%d out of bounds", ErrCorrupt, base, delta)
	}
	return int(p), nil
}

// nested follows an entry-relative pointer field. A zero delta means absent.
func nested(data []byte, entry, field int) (int, bool, error) {
	delta, err := readI32(data, entry+field)
	if err != nil {
		return 0, false, err
	}
	if delta == 0 {
		return 0, false, nil
	}
	p, err := resolve(data, entry, delta)
	if err != nil {
		return 0, false, err
	}
	return p, true, nil
}

func span(data []byte, off, n int) ([]byte, error) {
	if off < 0 || n < 0 || int64(off)+int64(n) > int64(len(data)) {
		return nil, fmt.Errorf("%w: %d bytes at %d out of bounds", ErrCorrupt, n, off)
	}
	return data[off : off+n], nil
}

func readU16(data []byte, off int) (uint16, error) {
	b, err := span(data, off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func readU32(data []byte, off int) (uint32, error) {
	b, err := span(data, off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func readI32(data []byte, off int) (int32, error) {
	v, err := readU32(data, off)
	return int32(v), err
}
