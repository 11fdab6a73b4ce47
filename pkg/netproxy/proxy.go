// Package netproxy puts a plugin's network error policy in front of the
// shared network client.
//
// Every plugin gets its own Proxy bound to itself. The proxy implements
// netclient.Client, forwards each call unchanged and intercepts exactly one
// error kind, *netclient.MustStopError, asking the owning plugin whether to
// suppress it. Cancellation and every other error pass straight through.
package netproxy

import (
	"context"
	"errors"

	"github.com/waftester/scanhost/pkg/metrics"
	"github.com/waftester/scanhost/pkg/netclient"
	"github.com/waftester/scanhost/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Decision is a recovery hook's answer for one intercepted error.
// Result is only used when StopBubbling is true.
type Decision struct {
	StopBubbling bool
	Result       *netclient.Response
}

// Suppress stops the error and makes the proxied call return resp.
func Suppress(resp *netclient.Response) Decision {
	return Decision{StopBubbling: true, Result: resp}
}

// Propagate lets the original error reach the caller.
func Propagate() Decision {
	return Decision{}
}

// RecoveryHandler decides what happens to a must-stop error. Plugins
// implement it; plugin.Base provides a default that logs and propagates.
type RecoveryHandler interface {
	HandleNetworkError(ctx context.Context, err *netclient.MustStopError) Decision
}

// Proxy wraps a client on behalf of one owner.
type Proxy struct {
	client  netclient.Client
	owner   RecoveryHandler
	name    string
	metrics *metrics.Collector
	tracer  trace.Tracer
}

var _ netclient.Client = (*Proxy)(nil)

// Option configures a Proxy.
type Option func(*Proxy)

// WithName sets the owner name used in spans and metrics.
func WithName(name string) Option {
	return func(p *Proxy) { p.name = name }
}

// WithMetrics records interceptions on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Proxy) { p.metrics = c }
}

// New binds client to owner. owner must not be nil.
func New(client netclient.Client, owner RecoveryHandler, opts ...Option) *Proxy {
	p := &Proxy{
		client: client,
		owner:  owner,
		tracer: telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Unwrap returns the wrapped client, for reading its configuration or
// statistics. Requests must go through the proxy.
func (p *Proxy) Unwrap() netclient.Client { return p.client }

func (p *Proxy) Get(ctx context.Context, url string, opts ...netclient.RequestOption) (*netclient.Response, error) {
	return p.call(ctx, "GET", url, func(ctx context.Context) (*netclient.Response, error) {
		return p.client.Get(ctx, url, opts...)
	})
}

func (p *Proxy) Head(ctx context.Context, url string, opts ...netclient.RequestOption) (*netclient.Response, error) {
	return p.call(ctx, "HEAD", url, func(ctx context.Context) (*netclient.Response, error) {
		return p.client.Head(ctx, url, opts...)
	})
}

func (p *Proxy) Post(ctx context.Context, url string, body []byte, opts ...netclient.RequestOption) (*netclient.Response, error) {
	return p.call(ctx, "POST", url, func(ctx context.Context) (*netclient.Response, error) {
		return p.client.Post(ctx, url, body, opts...)
	})
}

func (p *Proxy) Put(ctx context.Context, url string, body []byte, opts ...netclient.RequestOption) (*netclient.Response, error) {
	return p.call(ctx, "PUT", url, func(ctx context.Context) (*netclient.Response, error) {
		return p.client.Put(ctx, url, body, opts...)
	})
}

func (p *Proxy) Delete(ctx context.Context, url string, opts ...netclient.RequestOption) (*netclient.Response, error) {
	return p.call(ctx, "DELETE", url, func(ctx context.Context) (*netclient.Response, error) {
		return p.client.Delete(ctx, url, opts...)
	})
}

func (p *Proxy) Options(ctx context.Context, url string, opts ...netclient.RequestOption) (*netclient.Response, error) {
	return p.call(ctx, "OPTIONS", url, func(ctx context.Context) (*netclient.Response, error) {
		return p.client.Options(ctx, url, opts...)
	})
}

func (p *Proxy) Do(ctx context.Context, req *netclient.Request) (*netclient.Response, error) {
	return p.call(ctx, req.Method, req.URL, func(ctx context.Context) (*netclient.Response, error) {
		return p.client.Do(ctx, req)
	})
}

// call runs op and applies the owner's recovery policy. On the propagate
// path the error returned is the very value op returned.
func (p *Proxy) call(ctx context.Context, method, url string, op func(context.Context) (*netclient.Response, error)) (*netclient.Response, error) {
	ctx, span := p.tracer.Start(ctx, "netproxy."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("plugin", p.name),
			attribute.String("http.method", method),
			attribute.String("url.full", url),
		),
	)
	defer span.End()

	resp, err := op(ctx)
	if err == nil {
		return resp, nil
	}
	span.RecordError(err)

	if isCancellation(ctx, err) {
		span.SetStatus(codes.Error, "cancelled")
		return nil, err
	}

	mustStop, ok := netclient.AsMustStop(err)
	if !ok {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	decision := p.owner.HandleNetworkError(ctx, mustStop)
	if decision.StopBubbling {
		span.SetAttributes(attribute.String("recovery", metrics.DecisionSuppressed))
		p.metrics.Interception(p.name, metrics.DecisionSuppressed)
		return decision.Result, nil
	}

	span.SetAttributes(attribute.String("recovery", metrics.DecisionPropagated))
	span.SetStatus(codes.Error, mustStop.Message)
	p.metrics.Interception(p.name, metrics.DecisionPropagated)
	return nil, err
}

// isCancellation reports an operator stop. Deadlines are timeouts owned by
// the client and stay eligible for recovery.
func isCancellation(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
}
