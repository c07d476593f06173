package caaf

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed record at the start of every container.
type Header struct {
	Magic           [4]byte
	Version         uint8
	IsDependency    uint8
	SectionCount    uint16
	NameIndex       uint16
	DependencyIndex uint16
}

func (h *Header) Valid() bool {
	if string(h.Magic[:]) != Magic {
		return false
	}
	if h.SectionCount == 0 {
		return false
	}
	return true
}

func (h *Header) Compatible() bool {
	return h.Version == Version
}

func decodeHeader(b []byte) (Header, bool) {
	if len(b) < HeaderSize {
		return Header{}, false
	}
	var h Header
	copy(h.Magic[:], b[0:4])
	h.Version = b[4]
	h.IsDependency = b[5]
	h.SectionCount = binary.LittleEndian.Uint16(b[6:8])
	h.NameIndex = binary.LittleEndian.Uint16(b[8:10])
	h.DependencyIndex = binary.LittleEndian.Uint16(b[10:12])
	return h, true
}

func encodeHeader(b []byte, h Header) bool {
	if len(b) < HeaderSize {
		return false
	}
	copy(b[0:4], h.Magic[:])
	b[4] = h.Version
	b[5] = h.IsDependency
	binary.LittleEndian.PutUint16(b[6:8], h.SectionCount)
	binary.LittleEndian.PutUint16(b[8:10], h.NameIndex)
	binary.LittleEndian.PutUint16(b[10:12], h.DependencyIndex)
	return true
}

// ReadHeader validates the container header at the start of data.
// The section directory must fit inside data as well.
func ReadHeader(data []byte) (Header, error) {
	h, ok := decodeHeader(data)
	if !ok {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrNotContainer, len(data))
	}
	if !h.Valid() {
		return Header{}, fmt.Errorf("%w: bad magic or empty section directory", ErrNotContainer)
	}
	if !h.Compatible() {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrNotContainer, h.Version)
	}
	dirEnd := SectionListPos + 4*int(h.SectionCount)
	if dirEnd > len(data) {
		return Header{}, fmt.Errorf("%w: section directory out of bounds", ErrCorrupt)
	}
	return h, nil
}
