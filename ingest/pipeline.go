package ingest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/trovedb/trove"
	"github.com/trovedb/trove/embed"
	"github.com/trovedb/trove/rowstore"
)

const defaultBatchSize = 1000

// Pipeline drives batch ingestion: Fetch, Encode, Normalize, Store,
// repeated until the source is drained.
type Pipeline struct {
	store    *trove.Store
	embedder embed.Embedder
	rows     rowstore.Store
	opts     pipelineOptions
}

type pipelineOptions struct {
	batchSize  int
	checkpoint *Checkpoint
	sourceName string
	onBatch    func(batch, rows int)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineOptions)

// WithBatchSize sets how many rows each batch carries.
func WithBatchSize(n int) PipelineOption {
	return func(o *pipelineOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithCheckpoint enables resumable ingestion. The source name keys the
// checkpoint record; rows already committed under that name are skipped.
func WithCheckpoint(cp *Checkpoint, sourceName string) PipelineOption {
	return func(o *pipelineOptions) {
		o.checkpoint = cp
		o.sourceName = sourceName
	}
}

// WithProgress registers a callback invoked after each committed batch
// with the batch index and its row count.
func WithProgress(fn func(batch, rows int)) PipelineOption {
	return func(o *pipelineOptions) {
		o.onBatch = fn
	}
}

// NewPipeline creates a pipeline writing to the given store, embedder and
// row store.
func NewPipeline(store *trove.Store, embedder embed.Embedder, rows rowstore.Store, optFns ...PipelineOption) *Pipeline {
	opts := pipelineOptions{batchSize: defaultBatchSize}
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	return &Pipeline{store: store, embedder: embedder, rows: rows, opts: opts}
}

// Run drains the source. It returns the total number of rows committed by
// this run. On failure the error carries the failing batch index; batches
// before it stay committed and a later run resumes after them.
func (p *Pipeline) Run(ctx context.Context, source Source) (uint64, error) {
	skip, err := p.resumePoint()
	if err != nil {
		return 0, err
	}
	if skip > 0 {
		if err := p.skipRows(ctx, source, skip); err != nil {
			return 0, err
		}
	}

	var total uint64
	for batch := int(skip / uint64(p.opts.batchSize)); ; batch++ {
		rows, err := source.Next(ctx, p.opts.batchSize)
		if err != nil {
			return total, &BatchError{Batch: batch, Space: -1, Err: fmt.Errorf("fetch: %w", err)}
		}
		if len(rows) == 0 {
			return total, nil
		}

		if err := p.commitBatch(ctx, batch, rows); err != nil {
			return total, err
		}
		total += uint64(len(rows))

		if p.opts.checkpoint != nil {
			done := skip + total
			if err := p.opts.checkpoint.SetRowsDone(p.opts.sourceName, done); err != nil {
				return total, &BatchError{Batch: batch, Space: -1, Err: err}
			}
		}
		if p.opts.onBatch != nil {
			p.opts.onBatch(batch, len(rows))
		}
	}
}

func (p *Pipeline) resumePoint() (uint64, error) {
	if p.opts.checkpoint == nil {
		return 0, nil
	}
	return p.opts.checkpoint.RowsDone(p.opts.sourceName)
}

// skipRows discards rows already committed by an earlier run. Sources
// yield rows in a stable order, so dropping a prefix re-aligns the stream
// with the stored ordinals.
func (p *Pipeline) skipRows(ctx context.Context, source Source, n uint64) error {
	var skipped uint64
	for skipped < n {
		limit := p.opts.batchSize
		if remaining := n - skipped; remaining < uint64(limit) {
			limit = int(remaining)
		}
		rows, err := source.Next(ctx, limit)
		if err != nil {
			return fmt.Errorf("ingest resume: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("ingest resume: source ended at row %d, checkpoint says %d", skipped, n)
		}
		skipped += uint64(len(rows))
	}
	return nil
}

// commitBatch runs Encode, Normalize and Store for one batch. Embedding
// happens before any store interaction, so no external call runs under a
// store lock.
func (p *Pipeline) commitBatch(ctx context.Context, batch int, rows []Row) error {
	texts := make([]string, len(rows))
	financial := make([][]float32, len(rows))
	times := make([][]float32, len(rows))
	for i, r := range rows {
		texts[i] = ProductText(r)
		financial[i] = FinancialVector(r)
		times[i] = TimeVector(r)
	}

	product, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return &BatchError{Batch: batch, Space: trove.SpaceProduct, Err: fmt.Errorf("encode: %w", err)}
	}

	financial, err = p.store.Standardize(trove.SpaceFinancial, financial)
	if err != nil {
		return &BatchError{Batch: batch, Space: trove.SpaceFinancial, Err: err}
	}
	times, err = p.store.Standardize(trove.SpaceTime, times)
	if err != nil {
		return &BatchError{Batch: batch, Space: trove.SpaceTime, Err: err}
	}

	batches := []struct {
		space   trove.FeatureSpace
		vectors [][]float32
	}{
		{trove.SpaceProduct, product},
		{trove.SpaceFinancial, financial},
		{trove.SpaceTime, times},
	}

	firsts := make([]uint64, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, sp := range batches {
		g.Go(func() error {
			first, err := p.store.Add(gctx, sp.space, sp.vectors, texts)
			if err != nil {
				return &BatchError{Batch: batch, Space: sp.space, Err: err}
			}
			firsts[i] = first
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	first := firsts[0]
	for i, got := range firsts {
		if got != first {
			return &BatchError{Batch: batch, Space: batches[i].space,
				Err: fmt.Errorf("ordinal divergence: %s starts at %d, product at %d", batches[i].space, got, first)}
		}
	}

	txs := make([]rowstore.Transaction, len(rows))
	for i, r := range rows {
		r.Ordinal = first + uint64(i)
		txs[i] = r
	}
	if err := p.rows.InsertTransactions(ctx, txs); err != nil {
		return &BatchError{Batch: batch, Space: -1, Err: fmt.Errorf("row store: %w", err)}
	}
	return nil
}
