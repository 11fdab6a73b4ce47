package netclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/waftester/scanhost/pkg/defaults"
	"github.com/waftester/scanhost/pkg/duration"
	"github.com/waftester/scanhost/pkg/hosterrors"
	"golang.org/x/time/rate"
)

// HTTPConfig holds HTTP client configuration options.
type HTTPConfig struct {
	// Timeout is the total request timeout (default: 15s)
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification (default: true for security scanning)
	InsecureSkipVerify bool

	// Proxy is the HTTP/HTTPS proxy URL (optional)
	Proxy string

	// MaxIdleConns is the maximum number of idle connections across all hosts (default: 100)
	MaxIdleConns int

	// MaxConnsPerHost is the maximum connections per host (default: 25)
	MaxConnsPerHost int

	// RateLimit is requests per second across all plugins (0 = unlimited)
	RateLimit int

	// RateBurst is the limiter burst size (default: 10)
	RateBurst int

	// MaxHostErrors is the failure count after which a host fails fast (default: 5)
	MaxHostErrors int

	// HostErrorExpiry is how long a failed host stays blocked (default: 5min)
	HostErrorExpiry time.Duration

	// MaxBodySize caps the bytes read from a response body (default: 10 MiB)
	MaxBodySize int64

	// UserAgent is sent unless a request sets its own
	UserAgent string

	// Headers are added to every request
	Headers map[string]string
}

// DefaultHTTPConfig returns defaults tuned for scanning workloads.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:            duration.HTTPScanning,
		InsecureSkipVerify: true, // Security scanners often need this
		MaxIdleConns:       100,
		MaxConnsPerHost:    25,
		RateLimit:          defaults.RateLimit,
		RateBurst:          defaults.RateBurst,
		MaxHostErrors:      defaults.MaxHostErrors,
		HostErrorExpiry:    duration.HostErrorExpiry,
		MaxBodySize:        defaults.MaxBodySize,
		UserAgent:          defaults.UserAgent,
	}
}

// HTTPClient implements Client over net/http. Network failures come back
// as *MustStopError; once a host keeps failing, requests to it fail fast
// without touching the network.
type HTTPClient struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	hosts   *hosterrors.Cache

	requests atomic.Int64
	failures atomic.Int64
}

var _ Client = (*HTTPClient)(nil)

// NewHTTP creates an HTTPClient. Zero config values fall back to defaults.
func NewHTTP(cfg HTTPConfig) *HTTPClient {
	d := DefaultHTTPConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = d.MaxIdleConns
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = d.MaxConnsPerHost
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = d.RateBurst
	}
	if cfg.MaxHostErrors == 0 {
		cfg.MaxHostErrors = d.MaxHostErrors
	}
	if cfg.HostErrorExpiry == 0 {
		cfg.HostErrorExpiry = d.HostErrorExpiry
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = d.MaxBodySize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = d.UserAgent
	}

	dialer := &net.Dialer{
		Timeout:   duration.HTTPDial,
		KeepAlive: duration.HTTPKeepAlive,
	}

	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       duration.HTTPIdleConn,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   duration.HTTPTLSHandshake,
		DialContext:           dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err == nil && proxyURL != nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		// Malformed proxy URLs are rejected by config validation
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &HTTPClient{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Scanners need to see the redirect response itself
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(limit, cfg.RateBurst),
		hosts:   hosterrors.NewCache(cfg.MaxHostErrors, cfg.HostErrorExpiry),
	}
}

// Config returns the configuration the client was built with.
func (c *HTTPClient) Config() HTTPConfig { return c.cfg }

// Requests returns how many requests reached the network.
func (c *HTTPClient) Requests() int64 { return c.requests.Load() }

// Failures returns how many requests ended in a must-stop error.
func (c *HTTPClient) Failures() int64 { return c.failures.Load() }

// Hosts exposes the host error cache.
func (c *HTTPClient) Hosts() *hosterrors.Cache { return c.hosts }

func (c *HTTPClient) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodGet, url, nil, opts...))
}

func (c *HTTPClient) Head(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodHead, url, nil, opts...))
}

func (c *HTTPClient) Post(ctx context.Context, url string, body []byte, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodPost, url, body, opts...))
}

func (c *HTTPClient) Put(ctx context.Context, url string, body []byte, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodPut, url, body, opts...))
}

func (c *HTTPClient) Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodDelete, url, nil, opts...))
}

func (c *HTTPClient) Options(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodOptions, url, nil, opts...))
}

// Do sends req. Cancellation of ctx is returned as-is; network failures are
// returned as *MustStopError; anything else is wrapped with the method and URL.
func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, req.URL, err)
	}

	if c.hosts.Check(req.URL) {
		c.failures.Add(1)
		return nil, NewMustStopError(req.URL, ErrHostBlocked.Error(), ErrHostBlocked)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("netclient: rate limiter: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, req.URL, err)
	}
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = vs
	}

	c.requests.Add(1)
	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, c.classify(ctx, req, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodySize))
	if err != nil {
		return nil, c.classify(ctx, req, err)
	}

	if c.hosts.Errors(req.URL) > 0 {
		c.hosts.Clear(req.URL)
	}

	return &Response{
		URL:        req.URL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}

func (c *HTTPClient) classify(ctx context.Context, req *Request, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, context.Canceled)
	}

	switch {
	case hosterrors.IsDNSError(err):
		c.hosts.MarkPermanent(req.URL)
	case hosterrors.IsNetworkError(err):
		c.hosts.MarkError(req.URL)
	default:
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}

	c.failures.Add(1)
	return NewMustStopError(req.URL, err.Error(), err)
}
