// Package httpclient provides the HttpClient collaborator spec.md §1 treats
// as an external primitive (TLS, connection pooling). The concrete
// implementation here is deliberately thin: it does not retry or rate
// limit — those concerns belong to the RetryExecutor and RateLimiter
// components, composed by the stages that call this client.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/iapd-pipeline/internal/retry"
)

// Response is a closed-over HTTP response: status code plus a body the
// caller must close.
type Response struct {
	StatusCode int
	Body       io.ReadCloser
}

// Client performs a single HTTP GET, with no retry or rate-limit logic of
// its own. Implementations set a conventional User-Agent and follow
// redirects, per spec.md §6.
type Client interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// Options configures the default Client implementation.
type Options struct {
	UserAgent string
	Timeout   time.Duration
}

// HTTPClient implements Client using net/http with a pooling transport.
type HTTPClient struct {
	inner     *http.Client
	userAgent string
}

// New builds an HTTPClient with sane pooling defaults, grounded on the
// transport configuration the wider example pack uses for high-volume
// federal-data downloads.
func New(opts Options) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "iapd-pipeline/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPClient{
		inner: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		userAgent: opts.UserAgent,
	}
}

// Get issues a single GET request. Non-2xx responses are returned with
// their status code intact (not converted to an error) so callers can
// apply spec.md's per-status semantics (SUCCESS/FAILED/INVALID_URL/etc.)
// themselves; a *retry.HTTPError is attached for RetryExecutor classifiers.
func (c *HTTPClient) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "httpclient: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "httpclient: do request")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Response{StatusCode: resp.StatusCode, Body: resp.Body},
			&retry.HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	return &Response{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}
