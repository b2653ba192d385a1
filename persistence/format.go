package persistence

import "errors"

const (
	// MagicNumber identifies trove binary index files (ASCII: "TRV0")
	MagicNumber = 0x54525630
	// Version is the current file format version (v1.0.0)
	Version = 0x00010000

	// IndexTypeFlat is the only index type in the format. The field exists so
	// older files stay readable if another layout is ever added.
	IndexTypeFlat = 1
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidIndex   = errors.New("invalid index type")
)

// FileHeader is the 64-byte header at the start of every index file.
// Layout is fixed; all multi-byte fields are little-endian.
type FileHeader struct {
	Magic       uint32 // 0x54525630 ("TRV0")
	Version     uint32 // File format version
	IndexType   uint8  // 1=Flat
	Padding1    [3]byte
	VectorCount uint64 // Total number of vectors
	Dimension   uint32 // Vector dimensionality
	DataOffset  uint64 // Offset to vector data section
	MetaOffset  uint64 // Reserved (no metadata section yet)
	Checksum    uint32 // CRC32 of the vector data section
	Padding2    [4]byte
	Reserved    [16]byte // Future use
}
