package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trovedb/trove"
	"github.com/trovedb/trove/embed"
	"github.com/trovedb/trove/rowstore"
)

type sliceSource struct {
	rows []Row
	pos  int
}

func (s *sliceSource) Next(_ context.Context, limit int) ([]Row, error) {
	if s.pos >= len(s.rows) {
		return nil, nil
	}
	end := min(s.pos+limit, len(s.rows))
	out := s.rows[s.pos:end]
	s.pos = end
	return out, nil
}

// failingEmbedder fails every call once calls reaches failAt.
type failingEmbedder struct {
	embed.Embedder
	calls  int
	failAt int
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls >= f.failAt {
		return nil, errors.New("encoder unavailable")
	}
	return f.Embedder.EmbedBatch(ctx, texts)
}

func makeRows(n int) []Row {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			InvoiceNo:   fmt.Sprintf("INV-%04d", i/3),
			StockCode:   fmt.Sprintf("SC-%03d", i%40),
			Description: fmt.Sprintf("item number %d", i%40),
			Category:    []string{"Kitchen", "Office", "Garden"}[i%3],
			Quantity:    int64(1 + i%5),
			UnitPrice:   1.5 + float64(i%7),
			Discount:    float64(i%2) * 0.1,
			InvoiceDate: base.Add(time.Duration(i) * time.Minute),
			CustomerID:  fmt.Sprintf("C-%02d", i%9),
			Country:     "United Kingdom",
		}
	}
	return rows
}

type pipelineFixture struct {
	store *trove.Store
	rows  *rowstore.SQLite
	dir   string
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	dir := t.TempDir()

	store, err := trove.Open(filepath.Join(dir, "vectors"))
	require.NoError(t, err)

	rows, err := rowstore.OpenSQLite(filepath.Join(dir, "rows.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rows.Close() })

	return &pipelineFixture{store: store, rows: rows, dir: dir}
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	embedder := embed.NewHash(trove.SpaceProduct.Dimension())

	var batches []int
	p := NewPipeline(fx.store, embedder, fx.rows,
		WithBatchSize(7),
		WithProgress(func(batch, rows int) { batches = append(batches, rows) }),
	)

	total, err := p.Run(ctx, &sliceSource{rows: makeRows(20)})
	require.NoError(t, err)
	assert.Equal(t, uint64(20), total)
	assert.Equal(t, []int{7, 7, 6}, batches)

	// Every space carries the same dense ordinal range.
	for _, space := range trove.Spaces() {
		count, err := fx.store.Count(space)
		require.NoError(t, err)
		assert.Equal(t, uint64(20), count, space.String())
	}

	// Row store ordinals line up with vector store ordinals.
	rowCount, err := fx.rows.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), rowCount)

	tx, err := fx.rows.TransactionByOrdinal(ctx, 13)
	require.NoError(t, err)
	label, err := fx.store.Label(trove.SpaceProduct, 13)
	require.NoError(t, err)
	assert.Equal(t, ProductText(*tx), label)
}

func TestPipelineSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	embedder := embed.NewHash(trove.SpaceProduct.Dimension())

	p := NewPipeline(fx.store, embedder, fx.rows, WithBatchSize(10))
	_, err := p.Run(ctx, &sliceSource{rows: makeRows(30)})
	require.NoError(t, err)

	// A stored product text queried back should rank itself first.
	label, err := fx.store.Label(trove.SpaceProduct, 5)
	require.NoError(t, err)
	query, err := embedder.Embed(ctx, label)
	require.NoError(t, err)

	results, err := fx.store.Search(ctx, trove.SpaceProduct, query, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, label, results[0].Label)
	assert.InDelta(t, 0, float64(results[0].Distance), 1e-5)
}

func TestPipelineFailureKeepsPriorBatches(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	embedder := &failingEmbedder{
		Embedder: embed.NewHash(trove.SpaceProduct.Dimension()),
		failAt:   3,
	}
	p := NewPipeline(fx.store, embedder, fx.rows, WithBatchSize(5))

	total, err := p.Run(ctx, &sliceSource{rows: makeRows(20)})
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 2, batchErr.Batch)
	assert.Equal(t, trove.SpaceProduct, batchErr.Space)
	assert.Equal(t, uint64(10), total)

	count, err := fx.store.Count(trove.SpaceProduct)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), count)
}

func TestPipelineResumeFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	rows := makeRows(20)

	cp, err := OpenCheckpoint(filepath.Join(fx.dir, "checkpoint.db"))
	require.NoError(t, err)
	defer cp.Close()

	// First run dies on the third batch.
	broken := &failingEmbedder{
		Embedder: embed.NewHash(trove.SpaceProduct.Dimension()),
		failAt:   3,
	}
	p := NewPipeline(fx.store, broken, fx.rows,
		WithBatchSize(5), WithCheckpoint(cp, "retail"))
	total, err := p.Run(ctx, &sliceSource{rows: rows})
	require.Error(t, err)
	assert.Equal(t, uint64(10), total)

	done, err := cp.RowsDone("retail")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), done)

	// Second run with a healthy embedder picks up after the checkpoint.
	p = NewPipeline(fx.store, embed.NewHash(trove.SpaceProduct.Dimension()), fx.rows,
		WithBatchSize(5), WithCheckpoint(cp, "retail"))
	total, err = p.Run(ctx, &sliceSource{rows: rows})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), total)

	count, err := fx.store.Count(trove.SpaceProduct)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), count)

	rowCount, err := fx.rows.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), rowCount)

	// Nothing left: a third run is a no-op.
	total, err = p.Run(ctx, &sliceSource{rows: rows})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), total)
}

func TestCheckpoint(t *testing.T) {
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "cp.db"))
	require.NoError(t, err)
	defer cp.Close()

	done, err := cp.RowsDone("unseen")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), done)

	require.NoError(t, cp.SetRowsDone("retail", 42))
	done, err = cp.RowsDone("retail")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), done)

	require.NoError(t, cp.Clear("retail"))
	done, err = cp.RowsDone("retail")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), done)
}

func TestPipelineOrdinalResolvesAcrossBatches(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	embedder := embed.NewHash(trove.SpaceProduct.Dimension())

	rows := makeRows(2000)
	p := NewPipeline(fx.store, embedder, fx.rows, WithBatchSize(1000))
	total, err := p.Run(ctx, &sliceSource{rows: rows})
	require.NoError(t, err)
	require.Equal(t, uint64(2000), total)

	// Ordinal 1500 is the 501st row of the second batch.
	tx, err := fx.rows.TransactionByOrdinal(ctx, 1500)
	require.NoError(t, err)
	assert.Equal(t, rows[1500].InvoiceNo, tx.InvoiceNo)
	assert.Equal(t, rows[1500].StockCode, tx.StockCode)

	label, err := fx.store.Label(trove.SpaceProduct, 1500)
	require.NoError(t, err)
	assert.Equal(t, ProductText(rows[1500]), label)
}

// shortEmbedder drops the last vector component once calls reaches failAt,
// so the product append rejects the batch while the other spaces accept it.
type shortEmbedder struct {
	embed.Embedder
	calls  int
	failAt int
}

func (e *shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	vecs, err := e.Embedder.EmbedBatch(ctx, texts)
	if err != nil || e.calls < e.failAt {
		return vecs, err
	}
	for i := range vecs {
		vecs[i] = vecs[i][:len(vecs[i])-1]
	}
	return vecs, nil
}

func TestPipelineSingleSpaceFailureRepairedOnReopen(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	rows := makeRows(15)

	cp, err := OpenCheckpoint(filepath.Join(fx.dir, "checkpoint.db"))
	require.NoError(t, err)
	defer cp.Close()

	broken := &shortEmbedder{
		Embedder: embed.NewHash(trove.SpaceProduct.Dimension()),
		failAt:   2,
	}
	p := NewPipeline(fx.store, broken, fx.rows,
		WithBatchSize(5), WithCheckpoint(cp, "retail"))
	total, err := p.Run(ctx, &sliceSource{rows: rows})
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 2, batchErr.Batch)
	assert.Equal(t, uint64(5), total)

	// The failed batch may have reached some spaces but not others.
	// Reopening rolls every space back to the last batch that committed
	// everywhere.
	reopened, err := trove.Open(filepath.Join(fx.dir, "vectors"))
	require.NoError(t, err)
	for _, space := range trove.Spaces() {
		n, err := reopened.Count(space)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), n, space.String())
	}

	// A healthy rerun resumes from the checkpoint and completes.
	p = NewPipeline(reopened, embed.NewHash(trove.SpaceProduct.Dimension()), fx.rows,
		WithBatchSize(5), WithCheckpoint(cp, "retail"))
	total, err = p.Run(ctx, &sliceSource{rows: rows})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), total)

	for _, space := range trove.Spaces() {
		n, err := reopened.Count(space)
		require.NoError(t, err)
		assert.Equal(t, uint64(15), n, space.String())
	}
	rowCount, err := fx.rows.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), rowCount)
}
