package rowstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "rows.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTransactions() []Transaction {
	date := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	return []Transaction{
		{
			Ordinal: 0, InvoiceNo: "INV-1001", StockCode: "SC-1",
			Description: "ceramic coffee mug", Category: "Kitchen",
			Quantity: 6, UnitPrice: 4.25, InvoiceDate: date,
			CustomerID: "C-7", Country: "United Kingdom",
		},
		{
			Ordinal: 1, InvoiceNo: "INV-1001", StockCode: "SC-2",
			Description: "steel saucepan", Category: "Kitchen",
			Quantity: 1, UnitPrice: 23.50, Discount: 0.1, InvoiceDate: date,
			CustomerID: "C-7", Country: "United Kingdom",
		},
		{
			Ordinal: 2, InvoiceNo: "INV-1002", StockCode: "SC-3",
			Description: "desk lamp", Category: "Office",
			Quantity: 2, UnitPrice: 15.00, InvoiceDate: date.Add(24 * time.Hour),
			CustomerID: "C-9", Country: "France",
		},
	}
}

func TestInsertAndGetTransaction(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.InsertTransactions(ctx, sampleTransactions()))

	got, err := s.TransactionByOrdinal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "INV-1001", got.InvoiceNo)
	assert.Equal(t, "steel saucepan", got.Description)
	assert.InDelta(t, 23.50*0.9, got.Price(), 1e-9)
	assert.True(t, got.InvoiceDate.Equal(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)))

	_, err = s.TransactionByOrdinal(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertEmptyBatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.InsertTransactions(ctx, nil))

	count, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestDuplicateOrdinalRollsBackWholeBatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.InsertTransactions(ctx, sampleTransactions()))

	dup := sampleTransactions()[0]
	fresh := Transaction{
		Ordinal: 3, InvoiceNo: "INV-2000", StockCode: "SC-4",
		Description: "cotton shirt", Category: "Apparel",
		Quantity: 1, UnitPrice: 9.99, InvoiceDate: time.Now().UTC(),
		CustomerID: "C-1", Country: "Germany",
	}
	err := s.InsertTransactions(ctx, []Transaction{fresh, dup})
	require.Error(t, err)

	// The valid row in the failed batch must not have landed.
	_, err = s.TransactionByOrdinal(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionsByOrdinals(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.InsertTransactions(ctx, sampleTransactions()))

	got, err := s.TransactionsByOrdinals(ctx, []uint64{0, 2, 77})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ceramic coffee mug", got[0].Description)
	assert.Equal(t, "desk lamp", got[2].Description)
	_, ok := got[77]
	assert.False(t, ok)

	empty, err := s.TransactionsByOrdinals(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTransactionsPage(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.InsertTransactions(ctx, sampleTransactions()))

	page, err := s.TransactionsPage(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(1), page[0].Ordinal)
	assert.Equal(t, uint64(2), page[1].Ordinal)
}

func TestOrdinalsByCategory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.InsertTransactions(ctx, sampleTransactions()))

	bm, err := s.OrdinalsByCategory(ctx, "Kitchen")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), bm.GetCardinality())
	assert.True(t, bm.Contains(0))
	assert.True(t, bm.Contains(1))

	none, err := s.OrdinalsByCategory(ctx, "Garden")
	require.NoError(t, err)
	assert.True(t, none.IsEmpty())
}

func TestProducts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertProducts(ctx, []Product{
		{StockCode: "SC-1", Description: "ceramic coffee mug", Category: "Kitchen", UnitPrice: 4.25},
	}))

	p, err := s.ProductByStockCode(ctx, "SC-1")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", p.Category)

	// Upsert replaces fields under the same key.
	require.NoError(t, s.UpsertProducts(ctx, []Product{
		{StockCode: "SC-1", Description: "ceramic coffee mug", Category: "Kitchen", UnitPrice: 4.75},
	}))
	p, err = s.ProductByStockCode(ctx, "SC-1")
	require.NoError(t, err)
	assert.Equal(t, 4.75, p.UnitPrice)

	_, err = s.ProductByStockCode(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCustomers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertCustomers(ctx, []Customer{
		{CustomerID: "C-7", Country: "United Kingdom", Segment: "retail"},
	}))

	c, err := s.CustomerByID(ctx, "C-7")
	require.NoError(t, err)
	assert.Equal(t, "United Kingdom", c.Country)

	_, err = s.CustomerByID(ctx, "C-404")
	assert.ErrorIs(t, err, ErrNotFound)
}
