package integrations

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/noirforge/pkg/cache"
	"github.com/matzehuels/noirforge/pkg/httputil"
	"github.com/matzehuels/noirforge/pkg/observability"
)

// Client provides shared HTTP functionality for the code-host clients.
// It handles caching, retry logic, and common request headers.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	headers map[string]string
	retry   httputil.Policy
	maxSize int64
}

// NewClient creates a Client with the given cache and default headers.
// Headers are applied to all requests made through this client.
// Pass nil for keyer to use [cache.DefaultKeyer] and nil for headers if no
// default headers are needed. A ttl of 0 caches entries forever.
func NewClient(c cache.Cache, keyer cache.Keyer, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &Client{
		http:    NewHTTPClient(archiveTimeout),
		cache:   c,
		keyer:   keyer,
		ttl:     ttl,
		headers: headers,
		retry: httputil.Policy{
			Attempts: httputil.DefaultAttempts,
			Delay:    httputil.DefaultDelay,
			MaxDelay: httputil.DefaultMaxDelay,
		},
		maxSize: MaxArchiveSize,
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) {
	if h != nil {
		c.http = h
	}
}

// SetRetryPolicy replaces the retry policy used by [Client.Cached].
func (c *Client) SetRetryPolicy(p httputil.Policy) { c.retry = p }

// Cached returns the bytes stored under key, or executes fetch and caches
// its result. If refresh is true, the cache is bypassed and fetch is always
// called. Transient fetch errors are retried.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, fetch func() ([]byte, error)) ([]byte, error) {
	if !refresh {
		if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			return data, nil
		}
	}

	var data []byte
	err := httputil.Retry(ctx, c.retry, func() error {
		var err error
		data, err = fetch()
		return err
	})
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(ctx, key, data, c.ttl)
	return data, nil
}

// FetchArchive downloads the archive at url, serving repeated requests from
// the cache.
func (c *Client) FetchArchive(ctx context.Context, url string) ([]byte, error) {
	return c.Cached(ctx, c.keyer.ArchiveKey(url), false, func() ([]byte, error) {
		return c.GetBytes(ctx, url)
	})
}

// GetBytes performs a single HTTP GET request and returns the response body.
// Bodies larger than the client's size limit are rejected.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	return c.GetBytesWithHeaders(ctx, url, nil)
}

// GetBytesWithHeaders performs an HTTP GET with additional headers merged
// with defaults. Request-specific headers override client defaults for the
// same key.
func (c *Client) GetBytesWithHeaders(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	body, err := c.doRequest(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, c.maxSize+1))
	if err != nil {
		return nil, httputil.Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
	}
	if int64(len(data)) > c.maxSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, url)
	}
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests, code >= 500:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
