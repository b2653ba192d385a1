// Package normalize maintains running standardization statistics.
//
// Mean and variance are accumulated per component with Welford's method so
// every batch, regardless of when it was ingested, is standardized against
// statistics covering the whole corpus seen so far. Queries use the same
// statistics, keeping stored vectors and query vectors on one scale.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/trovedb/trove/persistence"
)

// Stats holds per-component running mean and variance.
// It is safe for concurrent use.
type Stats struct {
	mu    sync.RWMutex
	dim   int
	count uint64
	mean  []float64
	m2    []float64 // Sum of squared deviations from the running mean
}

// NewStats creates empty statistics for vectors of length dim.
func NewStats(dim int) *Stats {
	return &Stats{
		dim:  dim,
		mean: make([]float64, dim),
		m2:   make([]float64, dim),
	}
}

// Dimension returns the component count the statistics cover.
func (s *Stats) Dimension() int {
	return s.dim
}

// Count returns the number of observations folded in so far.
func (s *Stats) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Update folds a batch of raw vectors into the running statistics.
// Vectors of the wrong length are rejected before any mutation.
func (s *Stats) Update(batch [][]float32) error {
	for _, v := range batch {
		if len(v) != s.dim {
			return fmt.Errorf("normalize: vector length %d, want %d", len(v), s.dim)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range batch {
		s.count++
		n := float64(s.count)
		for i, x := range v {
			delta := float64(x) - s.mean[i]
			s.mean[i] += delta / n
			s.m2[i] += delta * (float64(x) - s.mean[i])
		}
	}
	return nil
}

// Apply returns a standardized copy of v: (x - mean) / stddev per component.
// Components with zero variance standardize to zero. With no observations
// yet, v is returned as an unchanged copy.
func (s *Stats) Apply(v []float32) ([]float32, error) {
	if len(v) != s.dim {
		return nil, fmt.Errorf("normalize: vector length %d, want %d", len(v), s.dim)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]float32, s.dim)
	if s.count == 0 {
		copy(out, v)
		return out, nil
	}

	for i, x := range v {
		variance := s.m2[i] / float64(s.count)
		if variance <= 0 {
			out[i] = 0
			continue
		}
		out[i] = float32((float64(x) - s.mean[i]) / math.Sqrt(variance))
	}
	return out, nil
}

// ApplyBatch standardizes every vector in the batch.
func (s *Stats) ApplyBatch(batch [][]float32) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i, v := range batch {
		std, err := s.Apply(v)
		if err != nil {
			return nil, err
		}
		out[i] = std
	}
	return out, nil
}

type statsFile struct {
	Dimension int       `json:"dimension"`
	Count     uint64    `json:"count"`
	Mean      []float64 `json:"mean"`
	M2        []float64 `json:"m2"`
}

// Save persists the statistics to path as JSON, atomically.
func (s *Stats) Save(path string) error {
	s.mu.RLock()
	file := statsFile{
		Dimension: s.dim,
		Count:     s.count,
		Mean:      append([]float64(nil), s.mean...),
		M2:        append([]float64(nil), s.m2...),
	}
	s.mu.RUnlock()

	data, err := json.Marshal(file)
	if err != nil {
		return err
	}
	return persistence.WriteFileAtomic(path, data)
}

// Load reads statistics from path. A missing file yields fresh statistics
// for the given dimension.
func Load(path string, dim int) (*Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewStats(dim), nil
		}
		return nil, err
	}

	var file statsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.Dimension != dim {
		return nil, fmt.Errorf("normalize: stats dimension %d, want %d", file.Dimension, dim)
	}
	if len(file.Mean) != dim || len(file.M2) != dim {
		return nil, fmt.Errorf("normalize: malformed stats file %s", path)
	}

	return &Stats{
		dim:   dim,
		count: file.Count,
		mean:  file.Mean,
		m2:    file.M2,
	}, nil
}
