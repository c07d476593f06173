package caaf

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compress wraps a container in the on-disk envelope: a single checksummed
// zstd frame that declares its content size. The frame is written as a single
// segment so the size is present even for tiny inputs.
func Compress(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(CompressionLevel)),
		zstd.WithEncoderCRC(true),
		zstd.WithSingleSegment(true),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("caaf: zstd encoder: %w", err)
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2+64)), nil
}

// Decompress unwraps an envelope. The frame header is probed first: streams
// that do not declare their content size, or whose size or window exceeds
// limit, are rejected before any output is allocated. A limit of zero means
// DecompressMemoryMax.
func Decompress(data []byte, limit uint64) ([]byte, error) {
	if limit == 0 {
		limit = DecompressMemoryMax
	}

	var h zstd.Header
	if err := h.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: frame header: %v", ErrDecompress, err)
	}
	if h.Skippable {
		return nil, fmt.Errorf("%w: skippable frame", ErrDecompress)
	}
	if !h.HasFCS {
		return nil, fmt.Errorf("%w: frame does not declare its content size", ErrDecompress)
	}
	if h.FrameContentSize > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, h.FrameContentSize, limit)
	}
	window := min(max(limit, zstd.MinWindowSize), zstd.MaxWindowSize)
	if h.WindowSize > window {
		return nil, fmt.Errorf("%w: window of %d bytes, limit %d", ErrTooLarge, h.WindowSize, window)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxMemory(limit),
		zstd.WithDecoderMaxWindow(window),
	)
	if err != nil {
		return nil, fmt.Errorf("caaf: zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, make([]byte, 0, int(h.FrameContentSize)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	if uint64(len(out)) != h.FrameContentSize {
		return nil, fmt.Errorf("%w: got %d bytes, header declares %d", ErrDecompress, len(out), h.FrameContentSize)
	}
	return out, nil
}
