// Package fetch resolves an ingest source to a local file. Dispatch exports
// usually sit on disk, but courier portals also hand out download links, so
// http(s) sources are pulled to a temp file first.
package fetch

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dispatch-cli/internal/resilience"
)

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig
	RateRPS   float64
}

// HTTPFetcher downloads export files with retry and rate limiting.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
	userAgent string
}

// NewHTTPFetcher creates a fetcher with the given options.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "dispatch-cli/1.0"
	}
	rps := opts.RateRPS
	if rps <= 0 {
		rps = 4
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retry:     opts.Retry,
		userAgent: opts.UserAgent,
	}
}

// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
// Transient statuses (429, 5xx) retry with backoff.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, url, dest string) (int64, error) {
	body, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) ([]byte, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetch: create request")
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("fetch: %s returned %d", url, resp.StatusCode),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("fetch: %s returned %d", url, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(dest, body, 0644); err != nil {
		return 0, eris.Wrap(err, "fetch: write file")
	}
	return int64(len(body)), nil
}

// Resolve turns an ingest source into a local path. Local paths pass through
// untouched. http(s) URLs download to a temp file that keeps the source's
// extension, so format dispatch downstream still works. cleanup removes the
// temp file; for local paths it is a no-op.
func Resolve(ctx context.Context, src string, f *HTTPFetcher) (string, func(), error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return src, func() {}, nil
	}
	if f == nil {
		f = NewHTTPFetcher(Options{})
	}

	ext := path.Ext(strings.SplitN(path.Base(src), "?", 2)[0])
	if ext == "" {
		ext = ".csv"
	}

	tmp, err := os.CreateTemp("", "dispatch-ingest-*"+ext)
	if err != nil {
		return "", nil, eris.Wrap(err, "fetch: create temp file")
	}
	_ = tmp.Close()

	n, err := f.DownloadToFile(ctx, src, tmp.Name())
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}

	zap.L().Info("fetched remote export",
		zap.String("url", src),
		zap.Int64("bytes", n),
	)
	return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
}
