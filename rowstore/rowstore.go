// Package rowstore provides keyed lookup of retail rows behind vector
// search results.
//
// Transactions are keyed by the same dense ordinal the vector store
// assigns, so resolving a search hit is a primary-key lookup. Products
// and customers are keyed by their natural identifiers.
package rowstore

import (
	"context"
	"errors"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("rowstore: not found")

// Transaction is one retail purchase line.
type Transaction struct {
	Ordinal     uint64
	InvoiceNo   string
	StockCode   string
	Description string
	Category    string
	Quantity    int64
	UnitPrice   float64
	Discount    float64
	InvoiceDate time.Time
	CustomerID  string
	Country     string
}

// Price returns the total line price after discount.
func (t Transaction) Price() float64 {
	return float64(t.Quantity) * t.UnitPrice * (1 - t.Discount)
}

// Product is a catalog entry.
type Product struct {
	StockCode   string
	Description string
	Category    string
	UnitPrice   float64
}

// Customer is a buyer profile.
type Customer struct {
	CustomerID string
	Country    string
	Segment    string
}

// Store is keyed row storage for transactions, products and customers.
type Store interface {
	// InsertTransactions appends transactions. Ordinals must be unique;
	// callers assign them in vector-store append order.
	InsertTransactions(ctx context.Context, txs []Transaction) error

	// TransactionByOrdinal returns the transaction stored under ordinal.
	TransactionByOrdinal(ctx context.Context, ordinal uint64) (*Transaction, error)

	// TransactionsByOrdinals resolves many ordinals at once. Missing
	// ordinals are omitted from the result, not reported as errors.
	TransactionsByOrdinals(ctx context.Context, ordinals []uint64) (map[uint64]Transaction, error)

	// TransactionsPage lists transactions by ordinal starting at offset.
	TransactionsPage(ctx context.Context, offset uint64, limit int) ([]Transaction, error)

	// OrdinalsByCategory returns the set of transaction ordinals whose
	// product category matches, for use as a search allowlist.
	OrdinalsByCategory(ctx context.Context, category string) (*roaring64.Bitmap, error)

	// CountTransactions returns the number of stored transactions.
	CountTransactions(ctx context.Context) (uint64, error)

	UpsertProducts(ctx context.Context, products []Product) error
	ProductByStockCode(ctx context.Context, stockCode string) (*Product, error)

	UpsertCustomers(ctx context.Context, customers []Customer) error
	CustomerByID(ctx context.Context, id string) (*Customer, error)

	Close() error
}
