package embed

import (
	"net/http"

	"golang.org/x/time/rate"
)

// config holds shared configuration for embedder implementations.
type config struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures an embedder.
type Option func(*config)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimension sets the desired output vector dimensionality.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithRateLimit caps API calls at rps requests per second with the given
// burst. Zero or negative rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *config) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}
