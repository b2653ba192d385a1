package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
)

// csvColumns is the required header of source CSV files, in order.
var csvColumns = []string{
	"invoice_no", "stock_code", "description", "category", "quantity",
	"unit_price", "discount", "invoice_date", "customer_id", "country",
}

// CSVSource reads rows from one or more CSV files matched by a doublestar
// glob pattern. Files are consumed in sorted path order so the row
// sequence is stable across runs.
type CSVSource struct {
	paths []string
	next  int
	file  *os.File
	r     *csv.Reader
}

// NewCSVSource resolves pattern (e.g. "data/**/*.csv") and prepares a
// source over the matches. No matches is an error.
func NewCSVSource(pattern string) (*CSVSource, error) {
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("resolving csv glob: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no csv files match %q", pattern)
	}
	sort.Strings(paths)
	return &CSVSource{paths: paths}, nil
}

// Next returns up to limit rows, crossing file boundaries as needed.
// An empty slice signals that all files are drained.
func (s *CSVSource) Next(ctx context.Context, limit int) ([]Row, error) {
	var out []Row
	for len(out) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.r == nil {
			if s.next >= len(s.paths) {
				break
			}
			if err := s.openNext(); err != nil {
				return nil, err
			}
		}

		record, err := s.r.Read()
		if err == io.EOF {
			s.file.Close()
			s.file, s.r = nil, nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.paths[s.next-1], err)
		}

		row, err := parseCSVRow(record)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", s.paths[s.next-1], err)
		}
		out = append(out, row)
	}
	return out, nil
}

// Close releases the currently open file, if any.
func (s *CSVSource) Close() error {
	if s.file != nil {
		err := s.file.Close()
		s.file, s.r = nil, nil
		return err
	}
	return nil
}

func (s *CSVSource) openNext() error {
	f, err := os.Open(s.paths[s.next])
	if err != nil {
		return fmt.Errorf("opening csv: %w", err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvColumns)

	header, err := r.Read()
	if err != nil {
		f.Close()
		return fmt.Errorf("reading header of %s: %w", s.paths[s.next], err)
	}
	for i, want := range csvColumns {
		if header[i] != want {
			f.Close()
			return fmt.Errorf("%s: header column %d is %q, want %q", s.paths[s.next], i, header[i], want)
		}
	}

	s.file, s.r = f, r
	s.next++
	return nil
}

func parseCSVRow(record []string) (Row, error) {
	var r Row
	r.InvoiceNo = record[0]
	r.StockCode = record[1]
	r.Description = record[2]
	r.Category = record[3]

	quantity, err := strconv.ParseInt(record[4], 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("quantity: %w", err)
	}
	r.Quantity = quantity

	r.UnitPrice, err = strconv.ParseFloat(record[5], 64)
	if err != nil {
		return Row{}, fmt.Errorf("unit price: %w", err)
	}
	r.Discount, err = strconv.ParseFloat(record[6], 64)
	if err != nil {
		return Row{}, fmt.Errorf("discount: %w", err)
	}
	r.InvoiceDate, err = parseSourceTime(record[7])
	if err != nil {
		return Row{}, err
	}

	r.CustomerID = record[8]
	r.Country = record[9]
	return r, nil
}
