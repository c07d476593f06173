// Package gpu declares the graphics backend the loader stages uploads through.
// Device creation, command submission and pipeline objects belong to the host;
// the loader only allocates buffers and records copies into a caller-owned
// copy pass.
package gpu

import (
	"errors"
	"strings"
)

var ErrOutOfMemory = errors.New("gpu: out of memory")

// BufferUsage is a bit set of destination buffer usages.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageIndirect
	BufferUsageStorage
)

func (u BufferUsage) String() string {
	if u == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		bit  BufferUsage
		name string
	}{
		{BufferUsageVertex, "vertex"},
		{BufferUsageIndex, "index"},
		{BufferUsageIndirect, "indirect"},
		{BufferUsageStorage, "storage"},
	} {
		if u&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// BufferDescriptor describes a destination buffer.
type BufferDescriptor struct {
	Label string
	Usage BufferUsage
	Size  uint32
}

// Buffer is a device-local buffer handle.
type Buffer interface {
	Size() uint32
}

// TransferBuffer is a host-visible staging buffer handle.
type TransferBuffer interface {
	Size() uint32
}

// TransferLocation is the source of an upload.
type TransferLocation struct {
	TransferBuffer TransferBuffer
	Offset         uint32
}

// BufferRegion is the destination of an upload.
type BufferRegion struct {
	Buffer Buffer
	Offset uint32
	Size   uint32
}

// Backend allocates and releases buffers. Releasing a transfer buffer that
// still feeds a queued upload is allowed; the backend keeps it alive until the
// upload has executed.
type Backend interface {
	CreateTransferBuffer(size uint32) (TransferBuffer, error)
	MapTransferBuffer(tb TransferBuffer) ([]byte, error)
	UnmapTransferBuffer(tb TransferBuffer)
	ReleaseTransferBuffer(tb TransferBuffer)

	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	ReleaseBuffer(b Buffer)
}

// CopyPass records uploads. The pass is owned by the caller, who ends and
// submits it.
type CopyPass interface {
	Upload(src TransferLocation, dst BufferRegion)
}
