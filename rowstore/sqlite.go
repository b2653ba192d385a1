package rowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLite implements Store on a single SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLite)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS retail_transactions (
	ord          INTEGER PRIMARY KEY,
	invoice_no   TEXT NOT NULL,
	stock_code   TEXT NOT NULL,
	description  TEXT NOT NULL,
	category     TEXT NOT NULL,
	quantity     INTEGER NOT NULL,
	unit_price   REAL NOT NULL,
	discount     REAL NOT NULL DEFAULT 0,
	invoice_date TEXT NOT NULL,
	customer_id  TEXT NOT NULL,
	country      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_category ON retail_transactions(category);

CREATE TABLE IF NOT EXISTS product_details (
	stock_code  TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	category    TEXT NOT NULL,
	unit_price  REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS customer_details (
	customer_id TEXT PRIMARY KEY,
	country     TEXT NOT NULL,
	segment     TEXT NOT NULL DEFAULT ''
);
`

// OpenSQLite opens (creating if needed) a SQLite row store at path.
// WAL mode keeps readers unblocked during ingest batches.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// DB exposes the underlying handle for use as an ingestion source.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// InsertTransactions appends transactions inside one SQL transaction so a
// failed batch leaves nothing behind.
func (s *SQLite) InsertTransactions(ctx context.Context, txs []Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO retail_transactions
			(ord, invoice_no, stock_code, description, category, quantity,
			 unit_price, discount, invoice_date, customer_id, country)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx, t.Ordinal, t.InvoiceNo, t.StockCode,
			t.Description, t.Category, t.Quantity, t.UnitPrice, t.Discount,
			t.InvoiceDate.UTC().Format(time.RFC3339), t.CustomerID, t.Country); err != nil {
			return fmt.Errorf("inserting transaction %d: %w", t.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// TransactionByOrdinal returns the transaction stored under ordinal.
func (s *SQLite) TransactionByOrdinal(ctx context.Context, ordinal uint64) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ord, invoice_no, stock_code, description, category, quantity,
		       unit_price, discount, invoice_date, customer_id, country
		FROM retail_transactions WHERE ord = ?
	`, ordinal)

	t, err := scanTransaction(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// TransactionsByOrdinals resolves many ordinals; missing ones are omitted.
func (s *SQLite) TransactionsByOrdinals(ctx context.Context, ordinals []uint64) (map[uint64]Transaction, error) {
	out := make(map[uint64]Transaction, len(ordinals))
	if len(ordinals) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(ordinals))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ordinals))
	for i, o := range ordinals {
		args[i] = o
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ord, invoice_no, stock_code, description, category, quantity,
		       unit_price, discount, invoice_date, customer_id, country
		FROM retail_transactions WHERE ord IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[t.Ordinal] = *t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return out, nil
}

// TransactionsPage lists transactions ordered by ordinal.
func (s *SQLite) TransactionsPage(ctx context.Context, offset uint64, limit int) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ord, invoice_no, stock_code, description, category, quantity,
		       unit_price, discount, invoice_date, customer_id, country
		FROM retail_transactions WHERE ord >= ?
		ORDER BY ord LIMIT ?
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return txs, nil
}

// OrdinalsByCategory returns the ordinals of all transactions in category.
func (s *SQLite) OrdinalsByCategory(ctx context.Context, category string) (*roaring64.Bitmap, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ord FROM retail_transactions WHERE category = ? ORDER BY ord", category)
	if err != nil {
		return nil, fmt.Errorf("querying ordinals: %w", err)
	}
	defer rows.Close()

	bm := roaring64.New()
	for rows.Next() {
		var ord uint64
		if err := rows.Scan(&ord); err != nil {
			return nil, fmt.Errorf("scanning ordinal: %w", err)
		}
		bm.Add(ord)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ordinals: %w", err)
	}
	return bm, nil
}

// CountTransactions returns the number of stored transactions.
func (s *SQLite) CountTransactions(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM retail_transactions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return count, nil
}

// UpsertProducts stores or updates catalog entries.
func (s *SQLite) UpsertProducts(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO product_details (stock_code, description, category, unit_price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(stock_code) DO UPDATE SET
			description = excluded.description,
			category = excluded.category,
			unit_price = excluded.unit_price
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.ExecContext(ctx, p.StockCode, p.Description, p.Category, p.UnitPrice); err != nil {
			return fmt.Errorf("upserting product %s: %w", p.StockCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ProductByStockCode returns the catalog entry for a stock code.
func (s *SQLite) ProductByStockCode(ctx context.Context, stockCode string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT stock_code, description, category, unit_price
		FROM product_details WHERE stock_code = ?
	`, stockCode)

	var p Product
	if err := row.Scan(&p.StockCode, &p.Description, &p.Category, &p.UnitPrice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning product: %w", err)
	}
	return &p, nil
}

// UpsertCustomers stores or updates customer profiles.
func (s *SQLite) UpsertCustomers(ctx context.Context, customers []Customer) error {
	if len(customers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO customer_details (customer_id, country, segment)
		VALUES (?, ?, ?)
		ON CONFLICT(customer_id) DO UPDATE SET
			country = excluded.country,
			segment = excluded.segment
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range customers {
		if _, err := stmt.ExecContext(ctx, c.CustomerID, c.Country, c.Segment); err != nil {
			return fmt.Errorf("upserting customer %s: %w", c.CustomerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CustomerByID returns the profile for a customer id.
func (s *SQLite) CustomerByID(ctx context.Context, id string) (*Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT customer_id, country, segment
		FROM customer_details WHERE customer_id = ?
	`, id)

	var c Customer
	if err := row.Scan(&c.CustomerID, &c.Country, &c.Segment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning customer: %w", err)
	}
	return &c, nil
}

func scanTransaction(scan func(dest ...any) error) (*Transaction, error) {
	var t Transaction
	var invoiceDate string
	if err := scan(&t.Ordinal, &t.InvoiceNo, &t.StockCode, &t.Description,
		&t.Category, &t.Quantity, &t.UnitPrice, &t.Discount, &invoiceDate,
		&t.CustomerID, &t.Country); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scanning transaction: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339, invoiceDate)
	if err != nil {
		return nil, fmt.Errorf("parsing invoice date: %w", err)
	}
	t.InvoiceDate = parsed
	return &t, nil
}
