// Package geocode provides address geocoding via the Census Geocoder.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client geocodes free-text locations.
type Client interface {
	// Geocode resolves a one-line address or place string to coordinates.
	// An unmatched location is not an error: Matched is false.
	Geocode(ctx context.Context, location string) (*Result, error)
}

// Result holds the geocoding output for a location.
type Result struct {
	Latitude       float64
	Longitude      float64
	MatchedAddress string
	Matched        bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client for Census requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for Census API calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithBaseURL overrides the Census endpoint, used in tests.
func WithBaseURL(base string) Option {
	return func(g *geocoder) {
		g.baseURL = base
	}
}

type geocoder struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(50, 50), // Census default: 50 req/s
		baseURL:    censusOneLineURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}
