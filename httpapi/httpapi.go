// Package httpapi exposes the query service over HTTP.
//
// Routes:
//
//	POST /search/product    {"query": "...", "k": 5, "category": "...", "answer": false}
//	POST /search/financial  {"features": [q, unit_price, price, discount], "k": 5}
//	POST /search/time       {"timestamp": 1700000000, "k": 5}
//	GET  /data/products/{id}
//	GET  /data/customers/{id}
//	GET  /                  health
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/trovedb/trove"
	"github.com/trovedb/trove/query"
	"github.com/trovedb/trove/rowstore"
)

const defaultK = 5

// Server handles HTTP requests against a query service and row store.
type Server struct {
	service *query.Service
	rows    rowstore.Store
	logger  *trove.Logger
	mux     *http.ServeMux
}

// NewServer builds a server. A nil logger disables logging.
func NewServer(service *query.Service, rows rowstore.Store, logger *trove.Logger) *Server {
	if logger == nil {
		logger = trove.NoopLogger()
	}
	s := &Server{service: service, rows: rows, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /search/product", s.handleSearchProduct)
	mux.HandleFunc("POST /search/financial", s.handleSearchFinancial)
	mux.HandleFunc("POST /search/time", s.handleSearchTime)
	mux.HandleFunc("GET /data/products/{id}", s.handleProduct)
	mux.HandleFunc("GET /data/customers/{id}", s.handleCustomer)
	mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux = mux

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.DebugContext(r.Context(), "request handled",
		"method", r.Method,
		"path", r.URL.Path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

type searchProductRequest struct {
	Query    string `json:"query"`
	K        int    `json:"k"`
	Category string `json:"category,omitempty"`
	Answer   bool   `json:"answer,omitempty"`
}

type searchFinancialRequest struct {
	Features []float32 `json:"features"`
	K        int       `json:"k"`
}

type searchTimeRequest struct {
	Timestamp float64 `json:"timestamp"`
	K         int     `json:"k"`
}

type transactionJSON struct {
	Ordinal     uint64  `json:"ordinal"`
	InvoiceNo   string  `json:"invoice_no"`
	StockCode   string  `json:"stock_code"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	Price       float64 `json:"price"`
	InvoiceDate string  `json:"invoice_date"`
	CustomerID  string  `json:"customer_id"`
	Country     string  `json:"country"`
}

type resultJSON struct {
	Ordinal     uint64          `json:"ordinal"`
	Distance    float32         `json:"distance"`
	Transaction transactionJSON `json:"transaction"`
}

type searchResponse struct {
	Results []resultJSON `json:"results"`
	Answer  string       `json:"answer,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearchProduct(w http.ResponseWriter, r *http.Request) {
	var req searchProductRequest
	if !s.decode(w, r, &req) {
		return
	}

	k := req.K
	if k <= 0 {
		k = defaultK
	}

	var (
		results []query.RankedResult
		answer  string
		err     error
	)
	if req.Answer {
		answer, results, err = s.service.Answer(r.Context(), req.Query, k)
	} else {
		var opts []query.ProductOption
		if req.Category != "" {
			opts = append(opts, query.WithCategory(req.Category))
		}
		results, err = s.service.SearchProduct(r.Context(), req.Query, k, opts...)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, searchResponse{Results: toResultJSON(results), Answer: answer})
}

func (s *Server) handleSearchFinancial(w http.ResponseWriter, r *http.Request) {
	var req searchFinancialRequest
	if !s.decode(w, r, &req) {
		return
	}

	k := req.K
	if k <= 0 {
		k = defaultK
	}

	results, err := s.service.SearchFinancial(r.Context(), req.Features, k)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Results: toResultJSON(results)})
}

func (s *Server) handleSearchTime(w http.ResponseWriter, r *http.Request) {
	var req searchTimeRequest
	if !s.decode(w, r, &req) {
		return
	}

	k := req.K
	if k <= 0 {
		k = defaultK
	}

	results, err := s.service.SearchTime(r.Context(), float32(req.Timestamp), k)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Results: toResultJSON(results)})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.rows.ProductByStockCode(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"stock_code":  p.StockCode,
		"description": p.Description,
		"category":    p.Category,
		"unit_price":  p.UnitPrice,
	})
}

func (s *Server) handleCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.rows.CustomerByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"customer_id": c.CustomerID,
		"country":     c.Country,
		"segment":     c.Segment,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, query.ErrEmptyQuery), errors.Is(err, trove.ErrInvalidK):
		status = http.StatusBadRequest
	case errors.Is(err, rowstore.ErrNotFound):
		status = http.StatusNotFound
	case isDimensionMismatch(err):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func isDimensionMismatch(err error) bool {
	var dm *trove.ErrDimensionMismatch
	return errors.As(err, &dm)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.ErrorContext(context.Background(), "encoding response", "error", err)
	}
}

func toResultJSON(results []query.RankedResult) []resultJSON {
	out := make([]resultJSON, len(results))
	for i, r := range results {
		t := r.Transaction
		out[i] = resultJSON{
			Ordinal:  r.Ordinal,
			Distance: r.Distance,
			Transaction: transactionJSON{
				Ordinal:     t.Ordinal,
				InvoiceNo:   t.InvoiceNo,
				StockCode:   t.StockCode,
				Description: t.Description,
				Category:    t.Category,
				Quantity:    t.Quantity,
				UnitPrice:   t.UnitPrice,
				Discount:    t.Discount,
				Price:       t.Price(),
				InvoiceDate: t.InvoiceDate.UTC().Format(time.RFC3339),
				CustomerID:  t.CustomerID,
				Country:     t.Country,
			},
		}
	}
	return out
}
