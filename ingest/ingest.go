// Package ingest loads retail transactions into the vector store.
//
// A Pipeline drains a Source in fixed-size batches. Each batch is encoded
// into the three feature spaces, standardized against the store's running
// statistics and appended to all spaces plus the row store, keeping one
// shared ordinal sequence. Progress checkpoints let an interrupted run
// resume at the next batch.
package ingest

import (
	"context"
	"fmt"

	"github.com/trovedb/trove"
	"github.com/trovedb/trove/rowstore"
)

// Row is one source transaction before it is assigned an ordinal.
type Row = rowstore.Transaction

// Source yields rows in a stable order. Next returns up to limit rows;
// an empty slice signals the end of the source.
type Source interface {
	Next(ctx context.Context, limit int) ([]Row, error)
}

// BatchError reports a failed ingestion batch. Batches before the failed
// one stay committed.
type BatchError struct {
	Batch int
	Space trove.FeatureSpace
	Err   error
}

func (e *BatchError) Error() string {
	if e.Space.Valid() {
		return fmt.Sprintf("ingest batch %d, space %s: %v", e.Batch, e.Space, e.Err)
	}
	return fmt.Sprintf("ingest batch %d: %v", e.Batch, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// ProductText is the text embedded for a row's product space entry.
func ProductText(r Row) string {
	if r.Category == "" {
		return r.Description
	}
	return r.Category + " " + r.Description
}

// FinancialVector is the 4-component feature tuple of a row: quantity,
// unit price, total price after discount, discount.
func FinancialVector(r Row) []float32 {
	return []float32{
		float32(r.Quantity),
		float32(r.UnitPrice),
		float32(r.Price()),
		float32(r.Discount),
	}
}

// TimeVector is the scalar time feature of a row, in unix seconds.
func TimeVector(r Row) []float32 {
	return []float32{float32(r.InvoiceDate.Unix())}
}
