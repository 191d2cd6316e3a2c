// Package feeds contains the HTTP clients for the external data the fair
// value models consume: Binance klines, CoinGecko prices, Chainlink Data
// Streams reports and the NWS gridpoint forecast.
//
// Every failure (transport, non-2xx status, malformed payload) wraps
// ErrUnavailable so callers can degrade without inspecting the cause.
package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnavailable marks a feed that could not produce usable data.
var ErrUnavailable = errors.New("feed unavailable")

// ErrStale marks a report too old to stand in for the current price.
var ErrStale = errors.New("feed report stale")

const (
	defaultTimeout   = 20 * time.Second
	defaultRateLimit = 5.0
	defaultBurst     = 5
)

// Option configures any of the feed clients.
type Option func(*JSONClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *JSONClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *JSONClient) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *JSONClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *JSONClient) {
		if ua != "" {
			c.headers.Set("User-Agent", ua)
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *JSONClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// JSONClient is a rate-limited GET-and-decode client shared by the feeds
// and the market sources.
type JSONClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	headers    http.Header
}

// NewJSONClient creates a JSONClient. headers are sent with every request;
// options are applied last.
func NewJSONClient(baseURL string, headers http.Header, opts ...Option) *JSONClient {
	c := &JSONClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		headers:    http.Header{"Accept": {"application/json"}},
	}
	for k, v := range headers {
		c.headers[k] = v
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *JSONClient) BaseURL() string {
	return c.baseURL
}

// Get fetches baseURL+path and decodes the JSON body into out.
func (c *JSONClient) Get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.GetURL(ctx, u, out)
}

// GetURL fetches an absolute URL and decodes the JSON body into out.
func (c *JSONClient) GetURL(ctx context.Context, u string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrUnavailable, err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: http request: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: api error %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	return nil
}
