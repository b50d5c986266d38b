// Package fetcher retrieves manifest and segment bytes over HTTP, wrapping
// the resilient client in pkg/httpclient with a thin transport-errors-only
// interface: parsing and business-level decisions belong to the caller.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dashcast/dashcast/internal/config"
	"github.com/dashcast/dashcast/pkg/httpclient"
)

// Fetcher retrieves raw bytes from a URL with optional request headers.
// Implementations surface only transport-level failures; interpreting the
// response body is the caller's job.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// HTTPFetcher is the default Fetcher, backed by a resilient client with
// per-host circuit breaking.
type HTTPFetcher struct {
	client *httpclient.Client
}

// New builds an HTTPFetcher from fetch configuration, sharing a circuit
// breaker profile with other manifest/segment traffic.
func New(cfg config.FetchConfig) *HTTPFetcher {
	hc := httpclient.DefaultConfig()
	hc.Timeout = cfg.Timeout
	hc.RetryAttempts = cfg.RetryAttempts
	hc.RetryDelay = cfg.RetryDelay
	hc.RetryMaxDelay = cfg.RetryMaxDelay
	hc.CircuitThreshold = cfg.CircuitBreakerThreshold
	hc.CircuitTimeout = cfg.CircuitBreakerTimeout
	hc.MaxResponseSize = cfg.MaxResponseSize.Bytes()
	if cfg.UserAgent != "" {
		hc.UserAgent = cfg.UserAgent
	}

	breaker := httpclient.DefaultManager.GetOrCreate("dash-fetch")
	return &HTTPFetcher{client: httpclient.NewWithBreaker(hc, breaker)}
}

// Fetch performs a GET request, returning the full response body. Any
// non-2xx status is reported as an error; the caller decides whether and
// when to retry (the session pipeline retries on its own poll cadence).
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", url, err)
	}
	return body, nil
}
