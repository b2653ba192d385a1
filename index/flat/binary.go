package flat

import (
	"fmt"
	"io"

	"github.com/trovedb/trove/index"
	"github.com/trovedb/trove/persistence"
)

// maxVectorCount bounds deserialization so a corrupt header cannot trigger a
// huge allocation.
const maxVectorCount = 100_000_000

// SaveToFile saves the index to a file using the binary snapshot format.
// The write is atomic: a crash mid-write never corrupts the previous file.
func (f *Index) SaveToFile(filename string, optFns ...func(o *persistence.SaveOptions)) error {
	return persistence.SaveToFile(filename, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	}, optFns...)
}

// LoadFromFile loads an index from a file.
// expectedDimension 0 accepts whatever the file declares; any other value is
// enforced against the persisted dimension.
func LoadFromFile(filename string, expectedDimension int) (*Index, error) {
	var f *Index
	err := persistence.LoadFromFile(filename, func(r io.Reader) error {
		var err error
		f, err = ReadFrom(r, expectedDimension)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// WriteTo writes the index to w in binary format.
//
// It matches the io.WriterTo interface for toolchain friendliness.
func (f *Index) WriteTo(w io.Writer) (int64, error) {
	f.writeMu.Lock()
	st := f.state.Load()
	f.writeMu.Unlock()

	data := st.data[:int(st.count)*f.dimension]

	// The checksum covers the vector data section and sits in the header, so
	// it has to be computed up front.
	cs := persistence.NewChecksumWriter(io.Discard)
	if err := persistence.NewBinaryIndexWriter(cs).WriteFloat32Slice(data); err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	writer := persistence.NewBinaryIndexWriter(cw)

	header := &persistence.FileHeader{
		IndexType:   persistence.IndexTypeFlat,
		VectorCount: st.count,
		Dimension:   uint32(f.dimension),
		DataOffset:  64, // After header
		Checksum:    cs.Sum(),
	}
	if err := writer.WriteHeader(header); err != nil {
		return cw.n, err
	}

	if err := writer.WriteFloat32Slice(data); err != nil {
		return cw.n, err
	}

	return cw.n, nil
}

// ReadFrom reads an index from r in binary format.
func ReadFrom(r io.Reader, expectedDimension int) (*Index, error) {
	header, err := persistence.NewBinaryIndexReader(r).ReadHeader()
	if err != nil {
		return nil, err
	}

	if header.IndexType != persistence.IndexTypeFlat {
		return nil, fmt.Errorf("%w: got %d", persistence.ErrInvalidIndex, header.IndexType)
	}
	if header.VectorCount > maxVectorCount {
		return nil, fmt.Errorf("vector count %d exceeds limit", header.VectorCount)
	}

	dim := int(header.Dimension)
	if expectedDimension != 0 && expectedDimension != dim {
		return nil, &index.ErrDimensionMismatch{Expected: expectedDimension, Actual: dim}
	}

	f, err := New(dim)
	if err != nil {
		return nil, err
	}

	// Checksum the data section as it streams in.
	cr := persistence.NewChecksumReader(r)
	data, err := persistence.NewBinaryIndexReader(cr).ReadFloat32Slice(int(header.VectorCount) * dim)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector data: %w", err)
	}
	if err := cr.Verify(header.Checksum); err != nil {
		return nil, err
	}

	f.state.Store(&indexState{
		data:  data,
		count: header.VectorCount,
	})
	return f, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
