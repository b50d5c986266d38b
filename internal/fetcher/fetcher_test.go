package fetcher

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dashcast/dashcast/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.FetchConfig {
	cfg := config.FetchConfig{
		Timeout:                 5 * time.Second,
		RetryAttempts:           0,
		RetryDelay:              time.Millisecond,
		RetryMaxDelay:           time.Millisecond,
		CircuitBreakerThreshold: 100,
		CircuitBreakerTimeout:   time.Second,
		UserAgent:               "dashcast-test/1.0",
	}
	mr, err := config.ParseByteSize("1MB")
	if err == nil {
		cfg.MaxResponseSize = mr
	}
	return cfg
}

func TestHTTPFetcher_Fetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "value", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("manifest-bytes"))
	}))
	defer srv.Close()

	f := New(testConfig())
	body, err := f.Fetch(t.Context(), srv.URL, map[string]string{"X-Test": "value"})
	require.NoError(t, err)
	assert.Equal(t, "manifest-bytes", string(body))
}

func TestHTTPFetcher_Fetch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(testConfig())
	_, err := f.Fetch(t.Context(), srv.URL, nil)
	assert.Error(t, err)
}

func TestHTTPFetcher_Fetch_BadURL(t *testing.T) {
	f := New(testConfig())
	_, err := f.Fetch(t.Context(), "://bad-url", nil)
	assert.Error(t, err)
}
