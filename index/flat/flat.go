// Package flat provides an append-only flat index for exact vector search.
package flat

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/trovedb/trove/distance"
	"github.com/trovedb/trove/index"
	"github.com/trovedb/trove/internal/queue"
)

// searchChunk is the number of candidate vectors scored per batch call.
const searchChunk = 256

// indexState holds the immutable state of the index for lock-free reads.
//
// data is a contiguous row-major store of count vectors of the configured
// dimension. Appends extend data in place; readers holding an older state
// only ever touch the prefix covered by their count, so sharing the backing
// array between states is safe.
type indexState struct {
	data  []float32
	count uint64
}

// Index is an append-only flat index for vector storage and exact search.
// It uses a copy-on-write pattern for lock-free concurrent reads; writes are
// serialized by a mutex. Vectors are never removed or mutated in place.
type Index struct {
	state     atomic.Pointer[indexState]
	writeMu   sync.Mutex // Serializes appends only
	dimension int        // Immutable after construction
}

// New creates a new empty flat index for vectors of length dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, &index.ErrInvalidDimension{Dimension: dimension}
	}

	f := &Index{dimension: dimension}
	f.state.Store(&indexState{})

	return f, nil
}

// Dimension returns the fixed vector dimensionality of this index.
func (f *Index) Dimension() int {
	return f.dimension
}

// Count returns the number of vectors in the index.
func (f *Index) Count() uint64 {
	return f.state.Load().count
}

// Append appends vectors to the index and returns the ordinal assigned to the
// first one; subsequent vectors receive the contiguous ordinals that follow.
//
// Validation happens before any mutation: if any vector has the wrong
// dimension, nothing is appended.
func (f *Index) Append(ctx context.Context, vectors [][]float32) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	for _, v := range vectors {
		if len(v) != f.dimension {
			return 0, &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(v)}
		}
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	old := f.state.Load()
	first := old.count

	if len(vectors) == 0 {
		return first, nil
	}

	// Appending to the shared backing array is safe: readers of the old state
	// never index past old.count*dimension.
	data := old.data
	for _, v := range vectors {
		data = append(data, v...)
	}

	f.state.Store(&indexState{
		data:  data,
		count: old.count + uint64(len(vectors)),
	})

	return first, nil
}

// Truncate drops every vector at or beyond ordinal n. The retained prefix
// is copied into a fresh backing array: readers holding an older state keep
// their snapshot, and appends after the truncation cannot overwrite rows
// that snapshot still covers.
func (f *Index) Truncate(n uint64) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	old := f.state.Load()
	if n >= old.count {
		return
	}

	data := make([]float32, int(n)*f.dimension)
	copy(data, old.data)
	f.state.Store(&indexState{data: data, count: n})
}

// VectorAt returns the vector stored at the given ordinal.
//
// The returned slice aliases internal memory and must be treated as
// read-only.
func (f *Index) VectorAt(ordinal uint64) ([]float32, bool) {
	st := f.state.Load()
	if ordinal >= st.count {
		return nil, false
	}
	off := int(ordinal) * f.dimension
	return st.data[off : off+f.dimension : off+f.dimension], true
}

// Search performs an exact K-nearest-neighbor scan by squared L2 distance.
//
// Results are sorted by non-decreasing distance; equal distances are broken
// by lower ordinal first. Searching an empty index returns an empty result,
// not an error. This method is lock-free and may run concurrently with
// appends.
func (f *Index) Search(ctx context.Context, query []float32, k int, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(query) != f.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(query)}
	}

	st := f.state.Load()
	if st.count == 0 {
		return nil, nil
	}

	actualK := k
	if uint64(actualK) > st.count {
		actualK = int(st.count)
	}

	top := queue.NewMax(actualK)

	if opts == nil || opts.Allow == nil {
		f.scanAll(st, query, actualK, top)
	} else {
		f.scanAllowed(st, query, actualK, opts.Allow, top)
	}

	results := make([]index.SearchResult, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		item, _ := top.Pop()
		results[i] = index.SearchResult{Ordinal: item.Ordinal, Distance: item.Distance}
	}
	return results, nil
}

// scanAll scores every vector in fixed-size chunks. Batching over the
// contiguous store keeps the distance kernel cache-friendly.
func (f *Index) scanAll(st *indexState, query []float32, k int, top *queue.PriorityQueue) {
	dists := make([]float32, searchChunk)
	count := int(st.count)

	for start := 0; start < count; start += searchChunk {
		n := min(searchChunk, count-start)
		off := start * f.dimension
		distance.SquaredL2Batch(query, st.data[off:off+n*f.dimension], f.dimension, dists[:n])

		for i := 0; i < n; i++ {
			offer(top, k, uint64(start+i), dists[i])
		}
	}
}

// scanAllowed scores only the ordinals present in the allowlist.
func (f *Index) scanAllowed(st *indexState, query []float32, k int, allow *roaring64.Bitmap, top *queue.PriorityQueue) {
	it := allow.Iterator()
	for it.HasNext() {
		ordinal := it.Next()
		if ordinal >= st.count {
			// The iterator yields ordinals in ascending order; everything
			// past the index end can be skipped.
			return
		}
		off := int(ordinal) * f.dimension
		d := distance.SquaredL2(query, st.data[off:off+f.dimension])
		offer(top, k, ordinal, d)
	}
}

// offer pushes a candidate into the bounded max-heap. With candidates
// visited in ascending ordinal order, the strict comparison keeps the lowest
// ordinal among equal distances.
func offer(top *queue.PriorityQueue, k int, ordinal uint64, dist float32) {
	if top.Len() < k {
		top.Push(queue.Item{Ordinal: ordinal, Distance: dist})
		return
	}
	worst, _ := top.Top()
	if dist < worst.Distance {
		top.Pop()
		top.Push(queue.Item{Ordinal: ordinal, Distance: dist})
	}
}
