package caaf

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// File is a raw container read from disk. Data may be a read-only mapping and
// must not be retained after Close.
type File struct {
	Data    []byte
	Header  Header
	mmapped bool
}

// OpenFile maps an uncompressed container read-only and validates its header.
// If mmap is unavailable, it falls back to ReadAt-based loading.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < SectionListPos || size64 > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: %s has size %d", ErrNotContainer, path, size64)
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		h, herr := ReadHeader(data)
		if herr != nil {
			_ = unix.Munmap(data)
			return nil, herr
		}
		return &File{Data: data, Header: h, mmapped: true}, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	return &File{Data: data, Header: h}, nil
}

// Close releases the mapping, if any.
func (f *File) Close() error {
	if f == nil || f.Data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.Data)
	}
	f.Data = nil
	f.mmapped = false
	return err
}

// IsCompressed reports whether path names an enveloped container.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ExtCompression)
}

// ReadFile returns the decompressed container bytes stored at path. Enveloped
// files are decompressed within limit; raw files are read as is.
func ReadFile(path string, limit uint64) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(path) {
		return data, nil
	}
	return Decompress(data, limit)
}

// WriteFile encodes doc and writes it to path, enveloped when path carries the
// compression suffix.
func WriteFile(path string, doc *Document) error {
	raw, err := Encode(doc)
	if err != nil {
		return err
	}
	if IsCompressed(path) {
		raw, err = Compress(raw)
		if err != nil {
			return err
		}
	}
	return os.WriteFile(path, raw, 0o644)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}
