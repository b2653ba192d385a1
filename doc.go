// Package trove provides an embedded multi-space vector store for
// transaction retrieval.
//
// A Store keeps three parallel feature spaces over one row sequence:
// product description embeddings, standardized financial features and
// standardized timestamps. Search is exact K-nearest-neighbor by squared
// L2 distance over a flat contiguous index.
//
// Rows are append-only and identified by dense ordinals assigned in
// insertion order. The same ordinal addresses the same row in every
// space, which makes the ordinal the join key between vector search
// results and external row storage.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, err := trove.Open("./data", trove.WithLogLevel(slog.LevelInfo))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	vecs, _ := store.Standardize(trove.SpaceFinancial, rawFeatures)
//	first, err := store.Add(ctx, trove.SpaceFinancial, vecs, labels)
//
//	q, _ := store.StandardizeQuery(trove.SpaceFinancial, rawQuery)
//	results, err := store.Search(ctx, trove.SpaceFinancial, q, 10)
//
// Each space persists as three files in the store directory: a binary
// index snapshot, a JSON label sidecar and JSON standardization
// statistics. Writes replace whole files atomically, so a crash leaves
// either the old or the new state on disk.
package trove
