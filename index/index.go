// Package index provides shared types for vector search indexes.
package index

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// SearchResult represents a single nearest-neighbor match.
type SearchResult struct {
	// Ordinal is the insertion position of the matched vector.
	Ordinal uint64

	// Distance is the squared L2 distance between query and match.
	Distance float32
}

// SearchOptions controls the execution of a search.
type SearchOptions struct {
	// Allow restricts candidates to the ordinals in the bitmap.
	// A nil bitmap admits every ordinal.
	Allow *roaring64.Bitmap
}
