package persistence

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")

	vectors := []float32{1, 2, 3, 4, 5, 6}

	err := SaveToFile(path, func(w io.Writer) error {
		bw := NewBinaryIndexWriter(w)
		header := &FileHeader{
			IndexType:   IndexTypeFlat,
			VectorCount: 2,
			Dimension:   3,
			DataOffset:  64,
		}
		if err := bw.WriteHeader(header); err != nil {
			return err
		}
		return bw.WriteFloat32Slice(vectors)
	})
	require.NoError(t, err)

	err = LoadFromFile(path, func(r io.Reader) error {
		br := NewBinaryIndexReader(r)
		header, err := br.ReadHeader()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), header.VectorCount)
		assert.Equal(t, uint32(3), header.Dimension)
		assert.Equal(t, uint8(IndexTypeFlat), header.IndexType)

		got, err := br.ReadFloat32Slice(6)
		require.NoError(t, err)
		assert.Equal(t, vectors, got)
		return nil
	})
	require.NoError(t, err)
}

func TestSaveToFileCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")

	payload := make([]float32, 1024)
	for i := range payload {
		payload[i] = float32(i % 7)
	}

	err := SaveToFile(path, func(w io.Writer) error {
		return NewBinaryIndexWriter(w).WriteFloat32Slice(payload)
	}, WithCompression())
	require.NoError(t, err)

	// Compressed file must start with the zstd frame magic.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 4)
	assert.Equal(t, zstdMagic, [4]byte(raw[:4]))

	// Load must decompress transparently.
	err = LoadFromFile(path, func(r io.Reader) error {
		got, err := NewBinaryIndexReader(r).ReadFloat32Slice(len(payload))
		require.NoError(t, err)
		assert.Equal(t, payload, got)
		return nil
	})
	require.NoError(t, err)
}

func TestSaveToFileLeavesNoTempOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	err := SaveToFile(path, func(w io.Writer) error {
		return os.ErrInvalid
	})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0644))

	err := LoadFromFile(path, func(r io.Reader) error {
		_, err := NewBinaryIndexReader(r).ReadHeader()
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestChecksum(t *testing.T) {
	t.Run("WriterReaderAgree", func(t *testing.T) {
		data := []byte("hello vectors")

		var sink nopWriter
		cw := NewChecksumWriter(&sink)
		_, err := cw.Write(data)
		require.NoError(t, err)

		assert.Equal(t, ComputeChecksum(data), cw.Sum())
	})

	t.Run("VerifyMismatch", func(t *testing.T) {
		cr := NewChecksumReader(strings.NewReader("abc"))
		_, err := io.ReadAll(cr)
		require.NoError(t, err)

		err = cr.Verify(0xdeadbeef)
		require.Error(t, err)
		assert.True(t, IsChecksumMismatch(err))
	})
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`["a","b"]`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(data))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
