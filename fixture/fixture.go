// Package fixture generates deterministic synthetic retail data for
// local development and tests. The same seed always yields the same
// catalog, customers and transaction stream.
package fixture

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/trovedb/trove/ingest"
	"github.com/trovedb/trove/rowstore"
)

var categories = []string{
	"Home Decor",
	"Kitchen",
	"Garden",
	"Toys",
	"Stationery",
	"Lighting",
}

var adjectives = []string{
	"vintage", "ceramic", "wooden", "glass", "woven", "painted",
	"folding", "enamel", "striped", "miniature", "scented", "antique",
}

var nouns = map[string][]string{
	"Home Decor": {"picture frame", "wall clock", "cushion cover", "door sign", "mirror"},
	"Kitchen":    {"mug", "teapot", "cake tin", "cutlery set", "storage jar"},
	"Garden":     {"watering can", "plant pot", "bird feeder", "garden gnome", "trowel"},
	"Toys":       {"spinning top", "jigsaw puzzle", "toy soldier", "music box", "kite"},
	"Stationery": {"notebook", "pencil set", "paper clip tin", "letter opener", "card set"},
	"Lighting":   {"tea light holder", "lantern", "string lights", "candle", "night light"},
}

var countries = []string{
	"United Kingdom", "France", "Germany", "Netherlands",
	"Ireland", "Spain", "Portugal", "Australia",
}

var segments = []string{"retail", "wholesale", "online"}

// Generator produces a reproducible retail dataset.
type Generator struct {
	rng       *rand.Rand
	products  []rowstore.Product
	customers []rowstore.Customer
	baseTime  time.Time
}

type config struct {
	seed      int64
	products  int
	customers int
}

// Option configures a Generator.
type Option func(*config)

// WithSeed sets the random seed. Generators with the same seed and
// counts produce identical data.
func WithSeed(seed int64) Option {
	return func(c *config) { c.seed = seed }
}

// WithProductCount sets the catalog size.
func WithProductCount(n int) Option {
	return func(c *config) { c.products = n }
}

// WithCustomerCount sets the number of customers.
func WithCustomerCount(n int) Option {
	return func(c *config) { c.customers = n }
}

// New creates a Generator and builds its product catalog and customer
// roster up front.
func New(optFns ...Option) *Generator {
	cfg := config{
		seed:      1,
		products:  60,
		customers: 25,
	}
	for _, fn := range optFns {
		fn(&cfg)
	}

	g := &Generator{
		rng:      rand.New(rand.NewSource(cfg.seed)),
		baseTime: time.Date(2025, time.January, 2, 8, 0, 0, 0, time.UTC),
	}
	g.products = g.makeProducts(cfg.products)
	g.customers = g.makeCustomers(cfg.customers)
	return g
}

// Products returns the generated catalog.
func (g *Generator) Products() []rowstore.Product {
	return g.products
}

// Customers returns the generated customer roster.
func (g *Generator) Customers() []rowstore.Customer {
	return g.customers
}

// SeedReference upserts the catalog and customer roster into the row
// store.
func (g *Generator) SeedReference(ctx context.Context, rows rowstore.Store) error {
	if err := rows.UpsertProducts(ctx, g.products); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	if err := rows.UpsertCustomers(ctx, g.customers); err != nil {
		return fmt.Errorf("seed customers: %w", err)
	}
	return nil
}

func (g *Generator) makeProducts(n int) []rowstore.Product {
	products := make([]rowstore.Product, 0, n)
	seen := make(map[string]bool, n)
	for len(products) < n {
		category := categories[g.rng.Intn(len(categories))]
		names := nouns[category]
		desc := adjectives[g.rng.Intn(len(adjectives))] + " " + names[g.rng.Intn(len(names))]
		if seen[desc] {
			continue
		}
		seen[desc] = true

		code := fmt.Sprintf("%05d", 10000+g.rng.Intn(90000))
		if g.rng.Intn(4) == 0 {
			code += string(rune('A' + g.rng.Intn(6)))
		}
		products = append(products, rowstore.Product{
			StockCode:   code,
			Description: desc,
			Category:    category,
			UnitPrice:   0.5 + float64(g.rng.Intn(4950))/100,
		})
	}
	return products
}

func (g *Generator) makeCustomers(n int) []rowstore.Customer {
	customers := make([]rowstore.Customer, n)
	for i := range customers {
		customers[i] = rowstore.Customer{
			CustomerID: fmt.Sprintf("%05d", 12000+i),
			Country:    countries[g.rng.Intn(len(countries))],
			Segment:    segments[g.rng.Intn(len(segments))],
		}
	}
	return customers
}

// Source returns a stable-order row source yielding total transaction
// rows. Rows are grouped into invoices of one to five lines sharing an
// invoice number, customer and timestamp.
func (g *Generator) Source(total int) ingest.Source {
	return &fixtureSource{gen: g, remaining: total, clock: g.baseTime}
}

type fixtureSource struct {
	gen       *Generator
	remaining int
	clock     time.Time

	// open invoice state, carried across Next calls
	invoiceNo    string
	invoiceLines int
	customer     rowstore.Customer
	invoiceTime  time.Time
}

func (s *fixtureSource) Next(ctx context.Context, limit int) ([]ingest.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.remaining <= 0 {
		return nil, nil
	}
	if limit > s.remaining {
		limit = s.remaining
	}

	g := s.gen
	rows := make([]ingest.Row, 0, limit)
	for len(rows) < limit {
		if s.invoiceLines == 0 {
			s.openInvoice()
		}
		p := g.products[g.rng.Intn(len(g.products))]
		rows = append(rows, ingest.Row{
			InvoiceNo:   s.invoiceNo,
			StockCode:   p.StockCode,
			Description: p.Description,
			Category:    p.Category,
			Quantity:    int64(1 + g.rng.Intn(12)),
			UnitPrice:   p.UnitPrice,
			Discount:    float64(g.rng.Intn(4)) * 0.05,
			InvoiceDate: s.invoiceTime,
			CustomerID:  s.customer.CustomerID,
			Country:     s.customer.Country,
		})
		s.invoiceLines--
	}
	s.remaining -= len(rows)
	return rows, nil
}

func (s *fixtureSource) openInvoice() {
	g := s.gen
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		// rand.Rand.Read never fails
		panic(err)
	}
	s.invoiceNo = id.String()
	s.invoiceLines = 1 + g.rng.Intn(5)
	s.customer = g.customers[g.rng.Intn(len(g.customers))]
	s.clock = s.clock.Add(time.Duration(1+g.rng.Intn(180)) * time.Minute)
	s.invoiceTime = s.clock
}
