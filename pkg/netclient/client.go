// Package netclient defines the network operations plugins use and the one
// error kind plugins may recover from.
//
// Client lists every operation explicitly. Wrappers such as the per-plugin
// proxy implement the same interface, so plugin code never knows whether it
// talks to the raw client or to a proxy in front of it.
//
// Implementations must be safe for concurrent use: plugin tasks share one
// client and any connection pools or cookie jars behind it.
package netclient

import (
	"context"
	"net/http"
	"time"
)

// Client is the network surface available to plugins.
type Client interface {
	Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Head(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Post(ctx context.Context, url string, body []byte, opts ...RequestOption) (*Response, error)
	Put(ctx context.Context, url string, body []byte, opts ...RequestOption) (*Response, error)
	Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Options(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is a fully described request for Client.Do.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewRequest builds a Request and applies opts.
func NewRequest(method, url string, body []byte, opts ...RequestOption) *Request {
	req := &Request{
		Method: method,
		URL:    url,
		Header: make(http.Header),
		Body:   body,
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// RequestOption customizes a request before it is sent.
type RequestOption func(*Request)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Set(key, value)
	}
}

// WithContentType sets the Content-Type header.
func WithContentType(ct string) RequestOption {
	return WithHeader("Content-Type", ct)
}

// Response is a fully read response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}
