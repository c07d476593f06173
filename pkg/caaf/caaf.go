// Package caaf implements the Compressed Asset Archive Format.
//
// A CAAF container holds the meshes, graphics pipeline descriptors, textures and
// samplers of one asset. Sections are addressed through a container-relative
// directory; entries inside indexed sections are addressed through self-relative
// offsets, and nested subsections are packed fixed-stride record arrays.
// All multi-byte fields are little-endian.
package caaf

// CAAF global constants must never change.
const (
	// Magic is the file magic for all CAAF containers.
	Magic = "CAAF"

	// Version is the only container version this package reads and writes.
	Version uint8 = 0

	// HeaderSize is the size of the fixed header record.
	HeaderSize = 12

	// SectionListPos is the container offset of the section directory.
	SectionListPos = 0x10

	// SectionHeaderSize is the size of an indexed section header (tag + count).
	SectionHeaderSize = 8

	// SubsectionHeaderSize is the size of a packed subsection header (count + element size).
	SubsectionHeaderSize = 4

	// NoIndex marks an absent string reference. It exceeds every string table bound.
	NoIndex uint16 = 0xFFFF

	// DecompressMemoryMax caps the memory a single envelope decode may use (65 MiB).
	DecompressMemoryMax uint64 = 68157440

	// CompressionLevel is the zstd level used when authoring containers.
	CompressionLevel = 5
)

// File name suffixes. They are a compatibility detail and must stay stable.
const (
	ExtModel       = ".caaf.zst"
	ExtShader      = ".csaf.zst"
	ExtModelRaw    = ".caaf"
	ExtCompression = ".zst"
)

// Pipeline enable flags.
const (
	PipelineDepthBias       uint16 = 1 << 0
	PipelineDepthClip       uint16 = 1 << 1
	PipelineDepthTest       uint16 = 1 << 2
	PipelineDepthWrite      uint16 = 1 << 3
	PipelineStencilTest     uint16 = 1 << 4
	PipelineAlphaToCoverage uint16 = 1 << 5
)

// Color target blend enable flags.
const (
	BlendEnable    uint8 = 1 << 0
	BlendWriteMask uint8 = 1 << 1
)

// Sampler enable flags.
const (
	SamplerAnisotropy uint8 = 1 << 0
	SamplerCompare    uint8 = 1 << 1
)
