// Package memgpu is a host-memory gpu.Backend. Buffers are byte slices, copy
// passes record uploads and execute them on Submit. It backs the command line
// tools and the tests, and can inject allocation faults.
package memgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samcharles93/caaf/internal/gpu"
)

// Op identifies an allocation request for fault injection.
type Op struct {
	Kind  OpKind
	Label string
	Usage gpu.BufferUsage
	Size  uint32
}

type OpKind uint8

const (
	OpCreateTransfer OpKind = iota + 1
	OpMapTransfer
	OpCreateBuffer
)

func (k OpKind) String() string {
	switch k {
	case OpCreateTransfer:
		return "create-transfer"
	case OpMapTransfer:
		return "map-transfer"
	case OpCreateBuffer:
		return "create-buffer"
	default:
		return "unknown"
	}
}

// Buffer is a device buffer held in host memory.
type Buffer struct {
	id       uint64
	label    string
	usage    gpu.BufferUsage
	data     []byte
	released bool
}

func (b *Buffer) ID() uint64             { return b.id }
func (b *Buffer) Size() uint32           { return uint32(len(b.data)) }
func (b *Buffer) Label() string          { return b.label }
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

// Contents returns a copy of the buffer bytes.
func (b *Buffer) Contents() []byte {
	return append([]byte(nil), b.data...)
}

// TransferBuffer is a staging buffer.
type TransferBuffer struct {
	id       uint64
	data     []byte
	mapped   bool
	released bool
	pending  int
}

func (tb *TransferBuffer) Size() uint32 { return uint32(len(tb.data)) }

// Stats summarises device allocations.
type Stats struct {
	LiveBuffers     int
	LiveTransfers   int
	BufferAllocs    int
	TransferAllocs  int
	BytesInUse      uint64
	UploadsExecuted int
}

// Device implements gpu.Backend. It is safe for concurrent use.
type Device struct {
	mu        sync.Mutex
	limit     uint64
	fault     func(Op) error
	nextID    uint64
	buffers   map[*Buffer]struct{}
	transfers map[*TransferBuffer]struct{}
	stats     Stats
}

var _ gpu.Backend = (*Device)(nil)

// Option configures a Device.
type Option func(*Device)

// WithMemoryLimit caps the bytes held by live buffers. Zero means unlimited.
func WithMemoryLimit(limit uint64) Option {
	return func(d *Device) { d.limit = limit }
}

// WithFault installs a hook consulted before every allocation. A non-nil
// result fails the request.
func WithFault(fn func(Op) error) Option {
	return func(d *Device) { d.fault = fn }
}

// New creates a Device.
func New(opts ...Option) *Device {
	d := &Device{
		buffers:   make(map[*Buffer]struct{}),
		transfers: make(map[*TransferBuffer]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetFault replaces the fault hook.
func (d *Device) SetFault(fn func(Op) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fault = fn
}

// Stats returns a snapshot of the allocation counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.LiveBuffers = len(d.buffers)
	s.LiveTransfers = len(d.transfers)
	return s
}

func (d *Device) check(op Op) error {
	if d.fault != nil {
		if err := d.fault(op); err != nil {
			return fmt.Errorf("memgpu: %s %d bytes: %w", op.Kind, op.Size, err)
		}
	}
	if op.Kind != OpMapTransfer && d.limit > 0 && d.stats.BytesInUse+uint64(op.Size) > d.limit {
		return fmt.Errorf("memgpu: %s %d bytes with %d of %d in use: %w",
			op.Kind, op.Size, d.stats.BytesInUse, d.limit, gpu.ErrOutOfMemory)
	}
	return nil
}

func (d *Device) CreateTransferBuffer(size uint32) (gpu.TransferBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(Op{Kind: OpCreateTransfer, Size: size}); err != nil {
		return nil, err
	}
	d.nextID++
	tb := &TransferBuffer{id: d.nextID, data: make([]byte, size)}
	d.transfers[tb] = struct{}{}
	d.stats.TransferAllocs++
	d.stats.BytesInUse += uint64(size)
	return tb, nil
}

func (d *Device) MapTransferBuffer(t gpu.TransferBuffer) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tb, err := d.transfer(t)
	if err != nil {
		return nil, err
	}
	if tb.released {
		return nil, errors.New("memgpu: map of released transfer buffer")
	}
	if tb.mapped {
		return nil, errors.New("memgpu: transfer buffer already mapped")
	}
	if err := d.check(Op{Kind: OpMapTransfer, Size: tb.Size()}); err != nil {
		return nil, err
	}
	tb.mapped = true
	return tb.data, nil
}

func (d *Device) UnmapTransferBuffer(t gpu.TransferBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tb, err := d.transfer(t); err == nil {
		tb.mapped = false
	}
}

func (d *Device) ReleaseTransferBuffer(t gpu.TransferBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tb, err := d.transfer(t)
	if err != nil || tb.released {
		return
	}
	tb.released = true
	tb.mapped = false
	d.collect(tb)
}

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(Op{Kind: OpCreateBuffer, Label: desc.Label, Usage: desc.Usage, Size: desc.Size}); err != nil {
		return nil, err
	}
	d.nextID++
	b := &Buffer{id: d.nextID, label: desc.Label, usage: desc.Usage, data: make([]byte, desc.Size)}
	d.buffers[b] = struct{}{}
	d.stats.BufferAllocs++
	d.stats.BytesInUse += uint64(desc.Size)
	return b, nil
}

func (d *Device) ReleaseBuffer(gb gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := gb.(*Buffer)
	if !ok || b.released {
		return
	}
	if _, live := d.buffers[b]; !live {
		return
	}
	b.released = true
	delete(d.buffers, b)
	d.stats.BytesInUse -= uint64(len(b.data))
}

func (d *Device) transfer(t gpu.TransferBuffer) (*TransferBuffer, error) {
	tb, ok := t.(*TransferBuffer)
	if !ok || tb == nil {
		return nil, fmt.Errorf("memgpu: foreign transfer buffer %T", t)
	}
	if _, live := d.transfers[tb]; !live {
		return nil, errors.New("memgpu: unknown transfer buffer")
	}
	return tb, nil
}

// collect frees a released transfer buffer once no upload references it.
// d.mu must be held.
func (d *Device) collect(tb *TransferBuffer) {
	if !tb.released || tb.pending > 0 {
		return
	}
	if _, live := d.transfers[tb]; !live {
		return
	}
	delete(d.transfers, tb)
	d.stats.BytesInUse -= uint64(len(tb.data))
}
