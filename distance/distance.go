// Package distance provides vector distance calculations for exact search.
package distance

import (
	"math"
	"slices"
)

// Dot calculates the dot product of two vectors.
//
// SAFETY: This function assumes len(a) == len(b).
// It does NOT perform bounds checks for performance reasons.
// Callers MUST ensure lengths match to avoid buffer over-reads.
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}
	return ret
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
//
// SAFETY: This function assumes len(a) == len(b).
// It does NOT perform bounds checks for performance reasons.
// Callers MUST ensure lengths match to avoid buffer over-reads.
func SquaredL2(a, b []float32) float32 {
	var ret float32
	for i := range a {
		d := a[i] - b[i]
		ret += d * d
	}
	return ret
}

// SquaredL2Batch calculates squared L2 distances from query against a batch
// of vectors. targets is a flattened array of N vectors, each of dimension
// dim. out must have length N (len(targets) / dim).
func SquaredL2Batch(query []float32, targets []float32, dim int, out []float32) {
	if dim <= 0 || len(out) == 0 || len(query) < dim {
		return
	}

	q := query[:dim]
	n := min(len(out), len(targets)/dim)

	for i := 0; i < n; i++ {
		offset := i * dim
		out[i] = SquaredL2(q, targets[offset:offset+dim])
	}
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}
