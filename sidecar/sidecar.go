// Package sidecar stores the human-readable labels parallel to an index.
//
// Labels are append-only and positionally aligned with vector ordinals. The
// whole file is rewritten on each persist so the on-disk representation is
// always a single valid JSON array, and the write is atomic.
package sidecar

import (
	"errors"
	"os"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/trovedb/trove/persistence"
)

// Sidecar is an append-only label store parallel to index ordinals.
// It is safe for concurrent use.
type Sidecar struct {
	mu     sync.RWMutex
	labels []string
}

// New creates an empty sidecar.
func New() *Sidecar {
	return &Sidecar{}
}

// Load reads a sidecar from path. A missing file yields an empty sidecar
// rather than an error.
func Load(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, err
	}

	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, err
	}
	return &Sidecar{labels: labels}, nil
}

// Append appends labels. Count alignment with the paired index is enforced
// by the caller, not here.
func (s *Sidecar) Append(labels []string) {
	if len(labels) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, labels...)
}

// Get returns the label at the given ordinal.
func (s *Sidecar) Get(ordinal uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ordinal >= uint64(len(s.labels)) {
		return "", false
	}
	return s.labels[ordinal], true
}

// Truncate drops every label at or beyond ordinal n.
func (s *Sidecar) Truncate(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < uint64(len(s.labels)) {
		s.labels = s.labels[:n]
	}
}

// Len returns the number of labels.
func (s *Sidecar) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.labels)
}

// Save writes the full label list to path as one JSON array, atomically.
func (s *Sidecar) Save(path string) error {
	s.mu.RLock()
	labels := s.labels
	if labels == nil {
		labels = []string{}
	}
	data, err := json.Marshal(labels)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return persistence.WriteFileAtomic(path, data)
}
