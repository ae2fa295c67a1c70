package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/dispatch-cli/internal/resilience"
)

const (
	defaultBaseURL     = "https://api.openrouteservice.org"
	defaultProfile     = "driving-car"
	defaultConcurrency = 3
	defaultTimeout     = 5 * time.Second

	milesPerMeter = 0.000621371

	// multiLegFactor discounts the consecutive-pair sum on chains of more than
	// two stops; pairwise legs overstate a continuous route.
	multiLegFactor = 0.9
)

// ORSClient implements Client against an OpenRouteService-compatible API.
// Construct it with NewORSClient; the zero value is not usable.
type ORSClient struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	profile     string
	cache       Cache
	limiter     *rate.Limiter
	slots       chan struct{}
	concurrency int
	timeout     time.Duration
	retry       resilience.RetryConfig
}

// NewORSClient creates a geocoding client. The API key comes from
// configuration; an empty key is allowed so offline paths (cache hits,
// fallback estimation) still work, but live lookups will fail to unmatched.
func NewORSClient(apiKey string, opts ...Option) *ORSClient {
	c := &ORSClient{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		profile:     defaultProfile,
		cache:       NewMemoryCache(),
		limiter:     rate.NewLimiter(rate.Limit(8), 8),
		slots:       make(chan struct{}, defaultConcurrency),
		concurrency: defaultConcurrency,
		timeout:     defaultTimeout,
		retry:       resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// acquire takes an in-flight slot, queueing until one frees or ctx ends.
func (c *ORSClient) acquire(ctx context.Context) error {
	select {
	case c.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ORSClient) release() { <-c.slots }

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves an address to coordinates. Results, including failures, are
// memoized; repeated lookups of a bad address never re-hit the network.
func (c *ORSClient) Geocode(ctx context.Context, address string) (*Result, error) {
	key := AddressKey(address)
	if key == "" {
		return &Result{Matched: false, Source: "ors"}, nil
	}

	if cached, err := c.cache.GetAddress(ctx, key); err == nil && cached != nil {
		return &Result{
			Coordinates: Coordinates{Lat: cached.Lat, Lon: cached.Lon},
			Matched:     cached.Matched,
			Source:      "cache",
		}, nil
	}

	coords, err := c.fetchGeocode(ctx, key)
	if err != nil {
		zap.L().Debug("geocode failed, memoizing miss",
			zap.String("address", key),
			zap.Error(err),
		)
		_ = c.cache.PutAddress(ctx, key, CachedAddress{Matched: false})
		return &Result{Matched: false, Source: "ors"}, nil
	}

	_ = c.cache.PutAddress(ctx, key, CachedAddress{Lat: coords.Lat, Lon: coords.Lon, Matched: true})
	return &Result{Coordinates: *coords, Matched: true, Source: "ors"}, nil
}

// BatchGeocode resolves addresses in parallel. Individual failures degrade to
// unmatched entries; the batch itself only fails on context cancellation.
func (c *ORSClient) BatchGeocode(ctx context.Context, addresses []string) ([]Result, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	results := make([]Result, len(addresses))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.concurrency)

	for i, addr := range addresses {
		eg.Go(func() error {
			r, err := c.Geocode(gCtx, addr)
			if err != nil || r == nil {
				results[i] = Result{Matched: false, Source: "ors"}
				return nil
			}
			results[i] = *r
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return results, eris.Wrap(err, "geocode: batch")
	}
	return results, nil
}

// RouteDistance returns driving miles along the coordinate chain. Two points
// issue one directions call; longer chains sum consecutive pairs with the
// multi-leg reduction factor. An error means no distance could be resolved and
// the caller should fall back to its own estimate.
func (c *ORSClient) RouteDistance(ctx context.Context, coords []Coordinates) (float64, error) {
	if len(coords) < 2 {
		return 0, nil
	}

	if len(coords) == 2 {
		return c.legDistance(ctx, coords[0], coords[1])
	}

	var total float64
	for i := 0; i < len(coords)-1; i++ {
		leg, err := c.legDistance(ctx, coords[i], coords[i+1])
		if err != nil {
			return 0, eris.Wrapf(err, "geocode: leg %d", i)
		}
		total += leg
	}
	return total * multiLegFactor, nil
}

// legDistance resolves one directed pair, through the distance cache.
func (c *ORSClient) legDistance(ctx context.Context, from, to Coordinates) (float64, error) {
	key := LegKey(from, to)
	if miles, ok, err := c.cache.GetDistance(ctx, key); err == nil && ok {
		return miles, nil
	}

	miles, err := c.fetchDirections(ctx, from, to)
	if err != nil {
		return 0, err
	}

	_ = c.cache.PutDistance(ctx, key, miles)
	return miles, nil
}

type directionsResponse struct {
	Features []struct {
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"` // meters
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

// fetchGeocode performs the /geocode/search call with slotting, rate limiting,
// timeout, and transient-failure retry.
func (c *ORSClient) fetchGeocode(ctx context.Context, address string) (*Coordinates, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Coordinates, error) {
		if err := c.acquire(ctx); err != nil {
			return nil, err
		}
		defer c.release()

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+"/geocode/search", nil)
		if err != nil {
			return nil, eris.Wrap(err, "geocode: build request")
		}
		req.Header.Set("Authorization", c.apiKey)
		req.Header.Set("Accept", "application/json")

		q := req.URL.Query()
		q.Set("text", address)
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()

		var decoded geocodeResponse
		if err := c.doJSON(req, &decoded); err != nil {
			return nil, err
		}

		if len(decoded.Features) == 0 || len(decoded.Features[0].Geometry.Coordinates) != 2 {
			return nil, eris.Errorf("geocode: no result for %q", address)
		}

		pair := decoded.Features[0].Geometry.Coordinates
		return &Coordinates{Lon: pair[0], Lat: pair[1]}, nil
	})
}

// fetchDirections performs one /v2/directions call between two points.
func (c *ORSClient) fetchDirections(ctx context.Context, from, to Coordinates) (float64, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (float64, error) {
		if err := c.acquire(ctx); err != nil {
			return 0, err
		}
		defer c.release()

		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, c.profile)
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, url, nil)
		if err != nil {
			return 0, eris.Wrap(err, "geocode: build directions request")
		}
		req.Header.Set("Authorization", c.apiKey)
		req.Header.Set("Accept", "application/json")

		q := req.URL.Query()
		q.Set("start", fmt.Sprintf("%f,%f", from.Lon, from.Lat))
		q.Set("end", fmt.Sprintf("%f,%f", to.Lon, to.Lat))
		req.URL.RawQuery = q.Encode()

		var decoded directionsResponse
		if err := c.doJSON(req, &decoded); err != nil {
			return 0, err
		}

		if len(decoded.Features) == 0 {
			return 0, eris.New("geocode: directions returned no routes")
		}

		meters := decoded.Features[0].Properties.Summary.Distance
		return meters * milesPerMeter, nil
	})
}

// doJSON executes the request and decodes the body, marking retryable HTTP
// statuses as transient.
func (c *ORSClient) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "geocode: execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "geocode: decode response")
	}
	return nil
}
