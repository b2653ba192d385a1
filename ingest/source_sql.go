package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLSource reads rows from a SQL table in rowid order. The table must
// carry the retail transaction columns; invoice_date is RFC 3339 text.
type SQLSource struct {
	db     *sql.DB
	table  string
	offset int64
}

// NewSQLSource creates a source over the named table of db.
func NewSQLSource(db *sql.DB, table string) *SQLSource {
	return &SQLSource{db: db, table: table}
}

// Next returns the next limit rows, or an empty slice when drained.
func (s *SQLSource) Next(ctx context.Context, limit int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT invoice_no, stock_code, description, category, quantity,
		       unit_price, discount, invoice_date, customer_id, country
		FROM %s ORDER BY rowid LIMIT ? OFFSET ?
	`, s.table), limit, s.offset)
	if err != nil {
		return nil, fmt.Errorf("querying source rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var invoiceDate string
		if err := rows.Scan(&r.InvoiceNo, &r.StockCode, &r.Description,
			&r.Category, &r.Quantity, &r.UnitPrice, &r.Discount,
			&invoiceDate, &r.CustomerID, &r.Country); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		r.InvoiceDate, err = parseSourceTime(invoiceDate)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source rows: %w", err)
	}

	s.offset += int64(len(out))
	return out, nil
}

var sourceTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseSourceTime(value string) (time.Time, error) {
	for _, layout := range sourceTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("ingest: unrecognized invoice date format: " + value)
}
