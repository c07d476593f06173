package caaf

import (
	"bytes"
	"errors"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	t.Parallel()

	raw := encodeSample(t)
	packed, err := Compress(raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	got, err := Decompress(packed, 0)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("round trip mismatch: got %d bytes want %d", len(got), len(raw))
	}
}

func TestDecompressRejectsOversizedStream(t *testing.T) {
	t.Parallel()

	raw := bytes.Repeat([]byte("vertex"), 4096)
	packed, err := Compress(raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if _, err := Decompress(packed, uint64(len(raw)-1)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := Decompress(packed, uint64(len(raw))); err != nil {
		t.Fatalf("decompress at exact limit: %v", err)
	}
}

func TestDecompressRejectsDamagedStreams(t *testing.T) {
	t.Parallel()

	raw := encodeSample(t)
	packed, err := Compress(raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	cases := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not zstd"),
		"truncated": packed[:len(packed)/2],
		"checksum": func() []byte {
			b := bytes.Clone(packed)
			b[len(b)-1] ^= 0xFF
			return b
		}(),
		"skippable": {0x50, 0x2A, 0x4D, 0x18, 4, 0, 0, 0, 1, 2, 3, 4},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decompress(data, 0); !errors.Is(err, ErrDecompress) {
				t.Fatalf("expected ErrDecompress, got %v", err)
			}
		})
	}
}
