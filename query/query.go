// Package query assembles search requests over the vector store and
// resolves results into full transaction rows.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trovedb/trove"
	"github.com/trovedb/trove/embed"
	"github.com/trovedb/trove/llm"
	"github.com/trovedb/trove/rowstore"
)

// ErrEmptyQuery is returned when a search text is empty.
var ErrEmptyQuery = errors.New("query: empty query text")

// RankedResult is a resolved search hit: ordinal, distance and the full
// transaction row behind it.
type RankedResult struct {
	Ordinal     uint64
	Distance    float32
	Transaction rowstore.Transaction
}

// Service runs searches against one store with one shared embedder. The
// embedder is injected once at construction, never created per request.
type Service struct {
	store     *trove.Store
	embedder  embed.Embedder
	rows      rowstore.Store
	completer llm.Completer
}

// NewService creates a query service. The completer may be nil when
// answer generation is not needed.
func NewService(store *trove.Store, embedder embed.Embedder, rows rowstore.Store, completer llm.Completer) *Service {
	return &Service{store: store, embedder: embedder, rows: rows, completer: completer}
}

// ProductOption refines a product search.
type ProductOption func(*productOptions)

type productOptions struct {
	category string
}

// WithCategory restricts results to transactions in the given product
// category.
func WithCategory(category string) ProductOption {
	return func(o *productOptions) { o.category = category }
}

// SearchProduct embeds the query text and returns the k nearest
// transactions by product similarity, closest first. Hits whose rows
// cannot be resolved are omitted rather than reported as errors.
func (s *Service) SearchProduct(ctx context.Context, text string, k int, optFns ...ProductOption) ([]RankedResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	var opts productOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	var hits []trove.SearchResult
	if opts.category != "" {
		allow, err := s.rows.OrdinalsByCategory(ctx, opts.category)
		if err != nil {
			return nil, fmt.Errorf("resolving category filter: %w", err)
		}
		hits, err = s.store.SearchFiltered(ctx, trove.SpaceProduct, vec, k, allow)
		if err != nil {
			return nil, err
		}
	} else {
		hits, err = s.store.Search(ctx, trove.SpaceProduct, vec, k)
		if err != nil {
			return nil, err
		}
	}

	return s.resolve(ctx, hits)
}

// SearchFinancial returns the k nearest transactions to a raw financial
// feature tuple (quantity, unit price, price, discount). The vector is
// standardized with the store's running statistics before searching.
func (s *Service) SearchFinancial(ctx context.Context, features []float32, k int) ([]RankedResult, error) {
	return s.searchStandardized(ctx, trove.SpaceFinancial, features, k)
}

// SearchTime returns the k nearest transactions to a raw unix timestamp.
func (s *Service) SearchTime(ctx context.Context, unixSeconds float32, k int) ([]RankedResult, error) {
	return s.searchStandardized(ctx, trove.SpaceTime, []float32{unixSeconds}, k)
}

func (s *Service) searchStandardized(ctx context.Context, space trove.FeatureSpace, raw []float32, k int) ([]RankedResult, error) {
	if len(raw) != space.Dimension() {
		return nil, &trove.ErrDimensionMismatch{Space: space, Expected: space.Dimension(), Actual: len(raw)}
	}
	vec, err := s.store.StandardizeQuery(space, raw)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.Search(ctx, space, vec, k)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, hits)
}

// resolve joins search hits with their rows, preserving rank order and
// dropping hits whose rows are missing.
func (s *Service) resolve(ctx context.Context, hits []trove.SearchResult) ([]RankedResult, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	ordinals := make([]uint64, len(hits))
	for i, h := range hits {
		ordinals[i] = h.Ordinal
	}
	rows, err := s.rows.TransactionsByOrdinals(ctx, ordinals)
	if err != nil {
		return nil, fmt.Errorf("resolving rows: %w", err)
	}

	results := make([]RankedResult, 0, len(hits))
	for _, h := range hits {
		row, ok := rows[h.Ordinal]
		if !ok {
			continue
		}
		results = append(results, RankedResult{
			Ordinal:     h.Ordinal,
			Distance:    h.Distance,
			Transaction: row,
		})
	}
	return results, nil
}
