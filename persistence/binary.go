// Package persistence provides binary serialization for vector indexes.
package persistence

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the little-endian zstd frame magic as it appears on disk.
var zstdMagic = [4]byte{0x28, 0xB5, 0x2F, 0xFD}

// BinaryIndexWriter writes indexes in optimized binary format.
type BinaryIndexWriter struct {
	w         io.Writer
	byteOrder binary.ByteOrder
}

// NewBinaryIndexWriter creates a new binary writer.
func NewBinaryIndexWriter(w io.Writer) *BinaryIndexWriter {
	return &BinaryIndexWriter{
		w:         w,
		byteOrder: binary.LittleEndian, // Native on x86/ARM
	}
}

// WriteHeader writes the file header.
func (bw *BinaryIndexWriter) WriteHeader(header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(bw.w, bw.byteOrder, header)
}

// WriteFloat32Slice writes a float32 slice as raw bytes (zero-copy compatible).
// Safety: Validates alignment before unsafe conversion.
func (bw *BinaryIndexWriter) WriteFloat32Slice(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}

	if err := validateFloat32SliceAlignment(vec); err != nil {
		return err
	}

	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4)
	_, err := bw.w.Write(byteSlice)
	return err
}

// WriteUint64Slice writes a uint64 slice as raw bytes.
// Safety: Validates alignment before unsafe conversion.
func (bw *BinaryIndexWriter) WriteUint64Slice(slice []uint64) error {
	if len(slice) == 0 {
		return nil
	}

	if err := validateUint64SliceAlignment(slice); err != nil {
		return err
	}

	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), len(slice)*8)
	_, err := bw.w.Write(byteSlice)
	return err
}

// BinaryIndexReader reads indexes from binary format.
type BinaryIndexReader struct {
	r         io.Reader
	byteOrder binary.ByteOrder
}

// NewBinaryIndexReader creates a new binary reader.
func NewBinaryIndexReader(r io.Reader) *BinaryIndexReader {
	return &BinaryIndexReader{
		r:         r,
		byteOrder: binary.LittleEndian,
	}
}

// ReadHeader reads and validates the file header.
func (br *BinaryIndexReader) ReadHeader() (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(br.r, br.byteOrder, &header); err != nil {
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	return &header, nil
}

// ReadFloat32Slice reads a float32 slice.
func (br *BinaryIndexReader) ReadFloat32Slice(count int) ([]float32, error) {
	if count == 0 {
		return nil, nil
	}
	vec := make([]float32, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), count*4)
	if _, err := io.ReadFull(br.r, byteSlice); err != nil {
		return nil, err
	}
	return vec, nil
}

// ReadFloat32SliceInto reads a float32 slice into the provided buffer.
func (br *BinaryIndexReader) ReadFloat32SliceInto(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4)
	if _, err := io.ReadFull(br.r, byteSlice); err != nil {
		return err
	}
	return nil
}

// ReadUint64Slice reads a uint64 slice.
func (br *BinaryIndexReader) ReadUint64Slice(count int) ([]uint64, error) {
	if count == 0 {
		return nil, nil
	}
	slice := make([]uint64, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), count*8)
	if _, err := io.ReadFull(br.r, byteSlice); err != nil {
		return nil, err
	}
	return slice, nil
}

// SaveOptions control snapshot encoding.
type SaveOptions struct {
	// Compress writes the file as a zstd stream. Compressed files are
	// detected transparently on load via the zstd frame magic.
	Compress bool
}

// WithCompression enables zstd compression for the snapshot file.
func WithCompression() func(o *SaveOptions) {
	return func(o *SaveOptions) {
		o.Compress = true
	}
}

// SaveToFile is a helper to save data to a file atomically.
//
// The payload is written to a temp file in the same directory, synced, and
// renamed over the target so a crash mid-write never corrupts the previous
// on-disk version.
func SaveToFile(filename string, writeFunc func(io.Writer) error, optFns ...func(o *SaveOptions)) error {
	var opts SaveOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	// Write to a temp file in the same directory to ensure rename is atomic.
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	// Match typical file permissions (best-effort).
	_ = tmp.Chmod(0644)

	// Use buffered writer to batch writes (critical for performance)
	buf := bufio.NewWriterSize(tmp, 256*1024)

	if opts.Compress {
		zw, err := zstd.NewWriter(buf)
		if err != nil {
			return err
		}
		if err := writeFunc(zw); err != nil {
			_ = zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
	} else {
		if err := writeFunc(buf); err != nil {
			return err
		}
	}

	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Atomically replace target.
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// LoadFromFile is a helper to load data from a file.
//
// Compressed snapshots are detected by the zstd frame magic and decompressed
// transparently.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	// Use buffered reader to batch reads
	buf := bufio.NewReaderSize(f, 256*1024)

	head, err := buf.Peek(4)
	if err == nil && len(head) == 4 && [4]byte(head) == zstdMagic {
		zr, err := zstd.NewReader(buf)
		if err != nil {
			return err
		}
		defer zr.Close()
		return readFunc(zr)
	}

	return readFunc(buf)
}

// WriteFileAtomic writes data to filename with the same temp-file-then-rename
// discipline as SaveToFile. Used for small JSON sidecar files.
func WriteFileAtomic(filename string, data []byte) error {
	return SaveToFile(filename, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
