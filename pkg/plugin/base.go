package plugin

import (
	"context"
	"log/slog"
	"sync"

	"github.com/waftester/scanhost/pkg/finding"
	"github.com/waftester/scanhost/pkg/kb"
	"github.com/waftester/scanhost/pkg/metrics"
	"github.com/waftester/scanhost/pkg/netclient"
	"github.com/waftester/scanhost/pkg/netproxy"
	"github.com/waftester/scanhost/pkg/report"
	"github.com/waftester/scanhost/pkg/tasks"
)

// Env holds the shared services a plugin is bound to.
type Env struct {
	Client   netclient.Client
	Tracker  *tasks.Tracker
	Store    *kb.Store
	Reporter *report.Reporter
	Logger   *slog.Logger
	Metrics  *metrics.Collector
}

// Base is embedded by every plugin.
type Base struct {
	name string

	mu       sync.RWMutex
	proxy    *netproxy.Proxy
	tracker  *tasks.Tracker
	store    *kb.Store
	reporter *report.Reporter
	logger   *slog.Logger
}

// NewBase returns a Base for a plugin declared as name.
func NewBase(name string) Base {
	return Base{name: name}
}

// Bind connects p to env. The network client is wrapped in a proxy that
// calls p.HandleNetworkError, so a plugin overriding the hook gets its own
// policy applied to every request it makes.
func Bind(p Plugin, env Env) {
	b := p.base()
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracker := env.Tracker
	if tracker == nil {
		tracker = tasks.New(nil, tasks.WithLogger(logger), tasks.WithMetrics(env.Metrics))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if env.Client != nil {
		b.proxy = netproxy.New(env.Client, p,
			netproxy.WithName(b.name),
			netproxy.WithMetrics(env.Metrics),
		)
	}
	b.tracker = tracker
	b.store = env.Store
	b.reporter = env.Reporter
	b.logger = logger.With(slog.String("plugin", b.name))
}

func (b *Base) base() *Base { return b }

func (b *Base) Key() Key { return Key{Name: b.name} }

func (b *Base) Name() string { return b.name }

// Type returns the plugin category. Plugins override it.
func (b *Base) Type() string { return "plugin" }

func (b *Base) Description() string { return "" }

func (b *Base) LongDescription() (string, error) {
	return "", b.missing("LongDescription")
}

func (b *Base) Dependencies() ([]string, error) {
	return nil, b.missing("Dependencies")
}

func (b *Base) Options() (OptionList, error) {
	return nil, b.missing("Options")
}

func (b *Base) Configure(OptionList) error {
	return b.missing("Configure")
}

func (b *Base) Run(context.Context, *Request) (*Result, error) {
	return nil, b.missing("Run")
}

// End is a no-op.
func (b *Base) End() error { return nil }

// HandleNetworkError logs the failing URL and message, then propagates.
func (b *Base) HandleNetworkError(ctx context.Context, err *netclient.MustStopError) netproxy.Decision {
	b.Logger().Error("network error",
		slog.String("url", err.URL),
		slog.String("message", err.Message),
	)
	return netproxy.Propagate()
}

func (b *Base) missing(method string) error {
	return &ConfigurationError{Plugin: b.name, Method: method}
}

// Logger returns the plugin's logger.
func (b *Base) Logger() *slog.Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.logger == nil {
		return slog.Default().With(slog.String("plugin", b.name))
	}
	return b.logger
}

// Client returns the proxied network client. Before Bind every call
// fails with ErrNotBound.
func (b *Base) Client() netclient.Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.proxy == nil {
		return unbound{}
	}
	return b.proxy
}

// Store returns the shared result store, or nil before Bind.
func (b *Base) Store() *kb.Store {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store
}

// Append stores f under (namespace, key), filling in the plugin name.
func (b *Base) Append(namespace, key string, f finding.Finding) error {
	store := b.Store()
	if store == nil {
		return ErrNotBound
	}
	if f.Plugin == "" {
		f.Plugin = b.name
	}
	return store.Append(namespace, key, f)
}

// Dispatch spawns fn as a task owned by this plugin. It does not block.
func (b *Base) Dispatch(ctx context.Context, name string, fn tasks.Func) {
	b.tasks().Spawn(ctx, b.name, name, fn)
}

// AwaitAll blocks until every task this plugin dispatched has finished,
// including tasks dispatched by those tasks. It returns their joined
// failures.
func (b *Base) AwaitAll() error {
	return b.tasks().Join(b.name)
}

// TaskStats returns counts of this plugin's tasks.
func (b *Base) TaskStats() tasks.Stats {
	return b.tasks().Stats(b.name)
}

func (b *Base) tasks() *tasks.Tracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tracker == nil {
		b.tracker = tasks.New(nil)
	}
	return b.tracker
}

// Report deduplicates findings by policy and emits them.
func (b *Base) Report(findings []finding.Finding, policy report.Policy) error {
	b.mu.RLock()
	r := b.reporter
	b.mu.RUnlock()
	if r == nil {
		return ErrNotBound
	}
	return r.Report(findings, policy)
}

// unbound is the client handed out before Bind.
type unbound struct{}

func (unbound) Get(context.Context, string, ...netclient.RequestOption) (*netclient.Response, error) {
	return nil, ErrNotBound
}

func (unbound) Head(context.Context, string, ...netclient.RequestOption) (*netclient.Response, error) {
	return nil, ErrNotBound
}

func (unbound) Post(context.Context, string, []byte, ...netclient.RequestOption) (*netclient.Response, error) {
	return nil, ErrNotBound
}

func (unbound) Put(context.Context, string, []byte, ...netclient.RequestOption) (*netclient.Response, error) {
	return nil, ErrNotBound
}

func (unbound) Delete(context.Context, string, ...netclient.RequestOption) (*netclient.Response, error) {
	return nil, ErrNotBound
}

func (unbound) Options(context.Context, string, ...netclient.RequestOption) (*netclient.Response, error) {
	return nil, ErrNotBound
}

func (unbound) Do(context.Context, *netclient.Request) (*netclient.Response, error) {
	return nil, ErrNotBound
}
