// Package geocode provides address geocoding and route distances over an
// OpenRouteService-compatible HTTP API, with result memoization, bounded
// request concurrency, and rate limiting.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/dispatch-cli/internal/resilience"
)

// Coordinates is a geographic point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Result holds the geocoding output for an address. An unmatched address is a
// normal outcome, not an error: failures degrade to Matched=false so the
// pipeline never blocks on a bad address.
type Result struct {
	Coordinates
	Matched bool   `json:"matched"`
	Source  string `json:"source"` // "ors" or "cache"
}

// Client is the geocoding/distance capability the pipeline consumes. It is an
// injectable dependency so the core logic tests against a fake.
type Client interface {
	// Geocode resolves an address to coordinates. A failed or unmatched
	// lookup returns Matched=false with a nil error.
	Geocode(ctx context.Context, address string) (*Result, error)

	// BatchGeocode resolves addresses in parallel, bounded by the client's
	// concurrency limit. Individual failures do not fail the batch.
	BatchGeocode(ctx context.Context, addresses []string) ([]Result, error)

	// RouteDistance returns the driving distance in miles along the given
	// coordinate chain. For more than two coordinates the client may sum
	// consecutive-pair distances with a small reduction factor instead of
	// issuing one multi-waypoint call; that tradeoff is deliberate.
	RouteDistance(ctx context.Context, coords []Coordinates) (float64, error)
}

// Option configures the ORS client.
type Option func(*ORSClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ORSClient) { c.httpClient = hc }
}

// WithBaseURL overrides the API base URL, used by tests to point at a fake.
func WithBaseURL(u string) Option {
	return func(c *ORSClient) { c.baseURL = u }
}

// WithCache sets the memoization cache. Defaults to an in-process MemoryCache.
func WithCache(cache Cache) Option {
	return func(c *ORSClient) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithConcurrency bounds the number of in-flight HTTP calls.
func WithConcurrency(n int) Option {
	return func(c *ORSClient) {
		if n > 0 {
			c.slots = make(chan struct{}, n)
			c.concurrency = n
		}
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *ORSClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
		}
	}
}

// WithTimeout bounds each network call. Timeouts degrade to unmatched results,
// they do not propagate.
func WithTimeout(d time.Duration) Option {
	return func(c *ORSClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry overrides the transient-failure retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *ORSClient) { c.retry = cfg }
}
