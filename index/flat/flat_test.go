package flat

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trovedb/trove/index"
)

func TestNew(t *testing.T) {
	f, err := New(3)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Dimension())
	assert.Equal(t, uint64(0), f.Count())

	_, err = New(0)
	assert.IsType(t, &index.ErrInvalidDimension{}, err)
}

func TestAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("ContiguousOrdinals", func(t *testing.T) {
		f, err := New(3)
		require.NoError(t, err)

		first, err := f.Append(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}})
		require.NoError(t, err)
		assert.Equal(t, uint64(0), first)
		assert.Equal(t, uint64(2), f.Count())

		first, err = f.Append(ctx, [][]float32{{0, 0, 1}})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), first)
		assert.Equal(t, uint64(3), f.Count())
	})

	t.Run("DimensionMismatchLeavesCountUnchanged", func(t *testing.T) {
		f, err := New(3)
		require.NoError(t, err)

		_, err = f.Append(ctx, [][]float32{{1, 0, 0}})
		require.NoError(t, err)

		// Second vector is bad; nothing from the batch may land.
		_, err = f.Append(ctx, [][]float32{{1, 1, 1}, {1, 1}})
		require.Error(t, err)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
		assert.Equal(t, uint64(1), f.Count())
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		f, err := New(3)
		require.NoError(t, err)

		first, err := f.Append(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), first)
		assert.Equal(t, uint64(0), f.Count())
	})
}

func TestVectorAt(t *testing.T) {
	f, err := New(2)
	require.NoError(t, err)

	_, err = f.Append(context.Background(), [][]float32{{1, 2}, {3, 4}})
	require.NoError(t, err)

	v, ok := f.VectorAt(1)
	require.True(t, ok)
	assert.Equal(t, []float32{3, 4}, v)

	_, ok = f.VectorAt(2)
	assert.False(t, ok)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyIndexReturnsNoResults", func(t *testing.T) {
		f, err := New(3)
		require.NoError(t, err)

		results, err := f.Search(ctx, []float32{1, 0, 0}, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("OrderedByDistance", func(t *testing.T) {
		f, err := New(3)
		require.NoError(t, err)

		_, err = f.Append(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
		require.NoError(t, err)

		results, err := f.Search(ctx, []float32{1, 0, 0.1}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, uint64(0), results[0].Ordinal)
		assert.InDelta(t, 0.01, results[0].Distance, 1e-5)
		assert.Equal(t, uint64(2), results[1].Ordinal)
		assert.InDelta(t, 1.81, results[1].Distance, 1e-5)
	})

	t.Run("TiesBrokenByLowerOrdinal", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		// Four identical vectors: all candidates tie at distance zero.
		_, err = f.Append(ctx, [][]float32{{1, 1}, {1, 1}, {1, 1}, {1, 1}})
		require.NoError(t, err)

		results, err := f.Search(ctx, []float32{1, 1}, 3, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, uint64(0), results[0].Ordinal)
		assert.Equal(t, uint64(1), results[1].Ordinal)
		assert.Equal(t, uint64(2), results[2].Ordinal)
	})

	t.Run("KLargerThanCount", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		_, err = f.Append(ctx, [][]float32{{1, 0}, {0, 1}})
		require.NoError(t, err)

		results, err := f.Search(ctx, []float32{1, 0}, 10, nil)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("InvalidK", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		_, err = f.Search(ctx, []float32{1, 0}, 0, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("QueryDimensionMismatch", func(t *testing.T) {
		f, err := New(3)
		require.NoError(t, err)

		_, err = f.Search(ctx, []float32{1, 0}, 1, nil)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
	})

	t.Run("AllowlistFilter", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		_, err = f.Append(ctx, [][]float32{{0, 0}, {1, 0}, {2, 0}, {3, 0}})
		require.NoError(t, err)

		allow := roaring64.BitmapOf(1, 3)
		results, err := f.Search(ctx, []float32{0, 0}, 4, &index.SearchOptions{Allow: allow})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, uint64(1), results[0].Ordinal)
		assert.Equal(t, uint64(3), results[1].Ordinal)
	})

	t.Run("AllowlistPastIndexEnd", func(t *testing.T) {
		f, err := New(2)
		require.NoError(t, err)

		_, err = f.Append(ctx, [][]float32{{0, 0}, {1, 0}})
		require.NoError(t, err)

		// Allowed ordinals beyond the index end are skipped, not scored.
		allow := roaring64.BitmapOf(0, 5, 6, 1000)
		results, err := f.Search(ctx, []float32{0, 0}, 4, &index.SearchOptions{Allow: allow})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, uint64(0), results[0].Ordinal)
	})
}

func TestSearchLargeIndexCrossesChunks(t *testing.T) {
	ctx := context.Background()

	f, err := New(4)
	require.NoError(t, err)

	// Enough vectors to span multiple scan chunks; the closest one is near
	// the end so chunk boundaries are exercised.
	n := searchChunk*3 + 17
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{float32(n - i), 0, 0, 0}
	}
	_, err = f.Append(ctx, vectors)
	require.NoError(t, err)

	results, err := f.Search(ctx, []float32{0, 0, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(n-1), results[0].Ordinal)
	assert.InDelta(t, 1.0, results[0].Distance, 1e-5)
}
