package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"
)

const (
	defaultUserAgent    = "geogotchi/1.0 (+https://www.geonames.org/export/web-services.html)"
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 5 << 20
)

// HTTPFetcher performs one GET per call. It never retries; a failed request
// is returned to the caller as is.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	limiter      *HostRateLimiter
	metrics      *Metrics
	logger       *slog.Logger
}

// HTTPFetcherConfig represents h t t p fetcher config.
type HTTPFetcherConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	// RateLimitRPS enables a per-host token bucket when positive.
	RateLimitRPS float64
	RateBurst    int
	Metrics      *Metrics
	// Transport replaces the default pooled transport, mostly for tests.
	Transport http.RoundTripper
}

// NewHTTPFetcher creates a fetcher with default settings: no rate limit and
// no metrics.
func NewHTTPFetcher(logger *slog.Logger) *HTTPFetcher {
	return NewHTTPFetcherWithConfig(logger, HTTPFetcherConfig{})
}

// NewHTTPFetcherWithConfig creates h t t p fetcher with config.
func NewHTTPFetcherWithConfig(logger *slog.Logger, cfg HTTPFetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          32,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       60 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		limiter:      NewHostRateLimiter(cfg.RateLimitRPS, cfg.RateBurst),
		metrics:      cfg.Metrics,
		logger:       logger,
	}
}

// Get sends rawURL with query appended and returns the body and status code.
// Non-200 statuses are not errors at this layer.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, query url.Values) ([]byte, int, error) {
	if f == nil {
		return nil, 0, errors.New("fetcher is nil")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	endpoint := path.Base(u.Path)

	if err := f.limiter.Wait(ctx, u.Hostname()); err != nil {
		return nil, 0, err
	}

	started := time.Now()
	body, status, err := f.doRequest(ctx, u.String())
	f.metrics.observe(endpoint, status, err, time.Since(started))
	if err != nil {
		if f.logger != nil {
			f.logger.Debug("geonames_fetch_error", "endpoint", endpoint, "error", err)
		}
		return nil, status, err
	}
	if f.logger != nil {
		f.logger.Debug("geonames_fetch", "endpoint", endpoint, "status", status, "bytes", len(body), "duration", time.Since(started))
	}
	return body, status, nil
}

// doRequest handles do request.
func (f *HTTPFetcher) doRequest(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
