package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestResolve_LocalPathPassesThrough(t *testing.T) {
	t.Parallel()

	path, cleanup, err := Resolve(context.Background(), "/data/orders.csv", nil)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "/data/orders.csv", path)
}

func TestResolve_DownloadsHTTPSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dispatch-cli/1.0", r.UserAgent())
		w.Write([]byte("Trip Number,Driver\nTR-1001,Alice\n"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{Retry: fastRetry()})
	path, cleanup, err := Resolve(context.Background(), srv.URL+"/export/orders.csv", f)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, ".csv", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Trip Number"))

	cleanup()
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestResolve_ExtensionFromURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{Retry: fastRetry()})

	path, cleanup, err := Resolve(context.Background(), srv.URL+"/export/orders.xlsx?token=abc", f)
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, ".xlsx", filepath.Ext(path))

	// No extension defaults to csv.
	path2, cleanup2, err := Resolve(context.Background(), srv.URL+"/export", f)
	require.NoError(t, err)
	defer cleanup2()
	assert.Equal(t, ".csv", filepath.Ext(path2))
}

func TestDownloadToFile_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{Retry: fastRetry()})
	dest := filepath.Join(t.TempDir(), "out.csv")

	n, err := f.DownloadToFile(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, 3, calls)
}

func TestDownloadToFile_PermanentFailure(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{Retry: fastRetry()})

	_, err := f.DownloadToFile(context.Background(), srv.URL, filepath.Join(t.TempDir(), "out.csv"))
	require.Error(t, err)
	// 404 is not transient, no retries.
	assert.Equal(t, 1, calls)
}
