package trove

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/trovedb/trove/index"
	"github.com/trovedb/trove/index/flat"
	"github.com/trovedb/trove/normalize"
	"github.com/trovedb/trove/sidecar"
)

// SearchResult is one ranked neighbor: the row ordinal and its squared L2
// distance from the query.
type SearchResult struct {
	Ordinal  uint64
	Distance float32
	Label    string
}

// spaceState is the per-space unit of locking. Appends and persistence for
// one space hold mu exclusively; searches take the read lock only long
// enough to capture the index pointer, the scan itself runs lock-free.
type spaceState struct {
	mu     sync.RWMutex
	index  *flat.Index
	labels *sidecar.Sidecar
	stats  *normalize.Stats
}

// Store is a multi-space vector store rooted at a directory.
//
// Every feature space keeps a flat exact index, a JSON label sidecar and
// standardization statistics, persisted as three files per space. Rows are
// identified by dense ordinals assigned in append order; a row's ordinal is
// the same in every space.
type Store struct {
	dir    string
	opts   options
	spaces map[FeatureSpace]*spaceState
}

// Open loads or initializes a store in dir. Missing files start empty;
// present files are validated against each other, and an index whose label
// sidecar disagrees on count is rejected as corrupt.
func Open(dir string, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &Store{
		dir:    dir,
		opts:   opts,
		spaces: make(map[FeatureSpace]*spaceState, len(Spaces())),
	}

	for _, space := range Spaces() {
		st, err := s.loadSpace(space)
		if err != nil {
			return nil, err
		}
		s.spaces[space] = st
		opts.logger.LogOpen(context.Background(), space, st.index.Count())
	}

	if err := s.repairAlignment(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) loadSpace(space FeatureSpace) (*spaceState, error) {
	idx, err := flat.LoadFromFile(s.indexPath(space), space.Dimension())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s index: %w", space, err)
		}
		idx, err = flat.New(space.Dimension())
		if err != nil {
			return nil, err
		}
	}

	labels, err := sidecar.Load(s.labelsPath(space))
	if err != nil {
		return nil, fmt.Errorf("load %s labels: %w", space, err)
	}

	stats, err := normalize.Load(s.statsPath(space), space.Dimension())
	if err != nil {
		return nil, fmt.Errorf("load %s stats: %w", space, err)
	}

	if uint64(labels.Len()) != idx.Count() {
		return nil, &ErrCorruptStore{
			Space:  space,
			Detail: fmt.Sprintf("index has %d vectors, sidecar has %d labels", idx.Count(), labels.Len()),
		}
	}

	return &spaceState{index: idx, labels: labels, stats: stats}, nil
}

// repairAlignment rolls every space back to the minimum common row count.
// Spaces are appended together, so a space running ahead means a
// multi-space batch was interrupted after some spaces persisted. The
// shortest space carries the last fully committed state; the longer ones
// are truncated to it and re-persisted.
func (s *Store) repairAlignment(ctx context.Context) error {
	want := s.spaces[SpaceProduct].index.Count()
	for _, space := range Spaces() {
		if got := s.spaces[space].index.Count(); got < want {
			want = got
		}
	}

	for _, space := range Spaces() {
		st := s.spaces[space]
		got := st.index.Count()
		if got == want {
			continue
		}
		s.opts.logger.Warn("rolling back partially committed rows",
			"space", space.String(), "count", got, "truncated_to", want)

		st.mu.Lock()
		st.index.Truncate(want)
		st.labels.Truncate(want)
		err := s.persistSpaceLocked(ctx, space, st)
		st.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) indexPath(space FeatureSpace) string {
	return filepath.Join(s.dir, space.String()+"_index.bin")
}

func (s *Store) labelsPath(space FeatureSpace) string {
	return filepath.Join(s.dir, space.String()+"_texts.json")
}

func (s *Store) statsPath(space FeatureSpace) string {
	return filepath.Join(s.dir, space.String()+"_stats.json")
}

// space resolves a feature space to its loaded state.
func (s *Store) space(space FeatureSpace) (*spaceState, error) {
	if !space.Valid() {
		return nil, &ErrUnknownSpace{Space: space}
	}
	st, ok := s.spaces[space]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotReady, space)
	}
	return st, nil
}

// Count returns the number of rows stored in the given space.
func (s *Store) Count(space FeatureSpace) (uint64, error) {
	st, err := s.space(space)
	if err != nil {
		return 0, err
	}
	return st.index.Count(), nil
}

// Dimension returns the vector length of the given space's index.
func (s *Store) Dimension(space FeatureSpace) (int, error) {
	st, err := s.space(space)
	if err != nil {
		return 0, err
	}
	return st.index.Dimension(), nil
}

// Standardize folds a batch of raw vectors into the running statistics of
// the space and returns standardized copies. The updated statistics reach
// disk with the space's next persisted Add (or Flush), so a batch that
// fails before its vectors commit leaves the on-disk statistics untouched.
// Spaces that store raw vectors pass the batch through untouched.
func (s *Store) Standardize(space FeatureSpace, batch [][]float32) ([][]float32, error) {
	st, err := s.space(space)
	if err != nil {
		return nil, err
	}
	if !space.Standardized() {
		return batch, nil
	}

	if err := st.stats.Update(batch); err != nil {
		return nil, err
	}
	return st.stats.ApplyBatch(batch)
}

// StandardizeQuery applies the current statistics of the space to a single
// query vector without updating them.
func (s *Store) StandardizeQuery(space FeatureSpace, query []float32) ([]float32, error) {
	st, err := s.space(space)
	if err != nil {
		return nil, err
	}
	if !space.Standardized() {
		return query, nil
	}
	return st.stats.Apply(query)
}

// Add appends a batch of vectors with their labels to one space and
// persists the space. It returns the ordinal assigned to the first row.
// An empty batch succeeds without effect. Labels may be omitted entirely
// by passing nil; the rows then carry empty labels, keeping the sidecar
// aligned with the index. Validation happens before any mutation, so a
// failed Add leaves the space unchanged.
func (s *Store) Add(ctx context.Context, space FeatureSpace, vectors [][]float32, labels []string) (uint64, error) {
	st, err := s.space(space)
	if err != nil {
		return 0, err
	}
	if len(labels) == 0 {
		labels = make([]string, len(vectors))
	} else if len(labels) != len(vectors) {
		return 0, &ErrLabelCountMismatch{Vectors: len(vectors), Labels: len(labels)}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	first, err := st.index.Append(ctx, vectors)
	if err != nil {
		s.opts.logger.LogAppend(ctx, space, 0, len(vectors), err)
		return 0, translateError(space, err)
	}
	st.labels.Append(labels)

	if len(vectors) > 0 && s.opts.syncWrites {
		if err := s.persistSpaceLocked(ctx, space, st); err != nil {
			return 0, err
		}
	}

	s.opts.logger.LogAppend(ctx, space, first, len(vectors), nil)
	return first, nil
}

func (s *Store) persistSpaceLocked(ctx context.Context, space FeatureSpace, st *spaceState) error {
	if err := st.index.SaveToFile(s.indexPath(space), s.opts.saveOptions()...); err != nil {
		s.opts.logger.LogPersist(ctx, space, s.indexPath(space), err)
		return fmt.Errorf("persist %s index: %w", space, err)
	}
	if err := st.labels.Save(s.labelsPath(space)); err != nil {
		s.opts.logger.LogPersist(ctx, space, s.labelsPath(space), err)
		return fmt.Errorf("persist %s labels: %w", space, err)
	}
	if space.Standardized() {
		if err := st.stats.Save(s.statsPath(space)); err != nil {
			s.opts.logger.LogPersist(ctx, space, s.statsPath(space), err)
			return fmt.Errorf("persist %s stats: %w", space, err)
		}
	}
	s.opts.logger.LogPersist(ctx, space, s.indexPath(space), nil)
	return nil
}

// Flush persists every space to disk. Only needed when sync writes are
// disabled.
func (s *Store) Flush(ctx context.Context) error {
	for _, space := range Spaces() {
		st := s.spaces[space]
		st.mu.Lock()
		err := s.persistSpaceLocked(ctx, space, st)
		st.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// Search returns the k nearest rows to query in the given space, closest
// first. Equal distances rank the lower ordinal first. Fewer than k rows
// in the space yields fewer than k results; an empty space yields none.
func (s *Store) Search(ctx context.Context, space FeatureSpace, query []float32, k int) ([]SearchResult, error) {
	return s.search(ctx, space, query, k, nil)
}

// SearchFiltered is Search restricted to an allowlist of ordinals.
func (s *Store) SearchFiltered(ctx context.Context, space FeatureSpace, query []float32, k int, allow *roaring64.Bitmap) ([]SearchResult, error) {
	return s.search(ctx, space, query, k, &index.SearchOptions{Allow: allow})
}

func (s *Store) search(ctx context.Context, space FeatureSpace, query []float32, k int, opts *index.SearchOptions) ([]SearchResult, error) {
	st, err := s.space(space)
	if err != nil {
		return nil, err
	}

	raw, err := st.index.Search(ctx, query, k, opts)
	s.opts.logger.LogSearch(ctx, space, k, len(raw), err)
	if err != nil {
		return nil, translateError(space, err)
	}

	results := make([]SearchResult, len(raw))
	for i, r := range raw {
		label, _ := st.labels.Get(r.Ordinal)
		results[i] = SearchResult{Ordinal: r.Ordinal, Distance: r.Distance, Label: label}
	}
	return results, nil
}

// Label returns the label stored for an ordinal in the given space.
func (s *Store) Label(space FeatureSpace, ordinal uint64) (string, error) {
	st, err := s.space(space)
	if err != nil {
		return "", err
	}
	label, ok := st.labels.Get(ordinal)
	if !ok {
		return "", fmt.Errorf("%w: ordinal %d in %s", ErrNotFound, ordinal, space)
	}
	return label, nil
}

// Vector returns the stored vector for an ordinal in the given space.
// The returned slice must be treated as read-only.
func (s *Store) Vector(space FeatureSpace, ordinal uint64) ([]float32, error) {
	st, err := s.space(space)
	if err != nil {
		return nil, err
	}
	v, ok := st.index.VectorAt(ordinal)
	if !ok {
		return nil, fmt.Errorf("%w: ordinal %d in %s", ErrNotFound, ordinal, space)
	}
	return v, nil
}
