package memgpu

import (
	"errors"
	"fmt"

	"github.com/samcharles93/caaf/internal/gpu"
)

// Upload is one recorded copy.
type Upload struct {
	Src *TransferBuffer
	Dst *Buffer

	SrcOffset uint32
	DstOffset uint32
	Size      uint32
}

// Pass records uploads for a later Submit.
type Pass struct {
	dev       *Device
	uploads   []Upload
	errs      []error
	submitted bool
}

var _ gpu.CopyPass = (*Pass)(nil)

// BeginCopyPass starts an empty pass on d.
func (d *Device) BeginCopyPass() *Pass {
	return &Pass{dev: d}
}

// Upload records a copy. Invalid requests are reported by Submit.
func (p *Pass) Upload(src gpu.TransferLocation, dst gpu.BufferRegion) {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()

	if p.submitted {
		p.errs = append(p.errs, errors.New("memgpu: upload recorded after submit"))
		return
	}
	tb, err := p.dev.transfer(src.TransferBuffer)
	if err != nil {
		p.errs = append(p.errs, err)
		return
	}
	b, ok := dst.Buffer.(*Buffer)
	if !ok || b == nil {
		p.errs = append(p.errs, fmt.Errorf("memgpu: foreign buffer %T", dst.Buffer))
		return
	}
	if uint64(src.Offset)+uint64(dst.Size) > uint64(len(tb.data)) {
		p.errs = append(p.errs, fmt.Errorf("memgpu: upload of %d bytes at %d overruns %d-byte transfer buffer",
			dst.Size, src.Offset, len(tb.data)))
		return
	}
	if uint64(dst.Offset)+uint64(dst.Size) > uint64(len(b.data)) {
		p.errs = append(p.errs, fmt.Errorf("memgpu: upload of %d bytes at %d overruns %d-byte buffer %q",
			dst.Size, dst.Offset, len(b.data), b.label))
		return
	}
	tb.pending++
	p.uploads = append(p.uploads, Upload{Src: tb, Dst: b, SrcOffset: src.Offset, DstOffset: dst.Offset, Size: dst.Size})
}

// Uploads returns the recorded copies in order.
func (p *Pass) Uploads() []Upload {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	return append([]Upload(nil), p.uploads...)
}

// Submit executes the recorded copies, then frees transfer buffers that were
// released while the pass referenced them. A pass can be submitted once.
func (p *Pass) Submit() error {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()

	if p.submitted {
		return errors.New("memgpu: pass already submitted")
	}
	p.submitted = true

	var errs []error
	errs = append(errs, p.errs...)
	for _, u := range p.uploads {
		if u.Dst.released {
			errs = append(errs, fmt.Errorf("memgpu: upload into released buffer %q", u.Dst.label))
		} else {
			copy(u.Dst.data[u.DstOffset:u.DstOffset+u.Size], u.Src.data[u.SrcOffset:u.SrcOffset+u.Size])
			p.dev.stats.UploadsExecuted++
		}
		u.Src.pending--
		p.dev.collect(u.Src)
	}
	return errors.Join(errs...)
}
