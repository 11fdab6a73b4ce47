// Package metrics exposes plugin host activity to Prometheus: task
// lifecycle per plugin, network error interceptions and emitted findings.
//
// All recording methods are safe on a nil *Collector, so components take an
// optional collector without guarding every call.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/waftester/scanhost/pkg/defaults"
	"github.com/waftester/scanhost/pkg/duration"
)

// Decision labels for interception metrics.
const (
	DecisionSuppressed = "suppressed"
	DecisionPropagated = "propagated"
)

// Collector holds the host's Prometheus metrics in a private registry.
type Collector struct {
	registry *prometheus.Registry

	tasksSpawned   *prometheus.CounterVec
	tasksFinished  *prometheus.CounterVec
	tasksRunning   *prometheus.GaugeVec
	interceptions  *prometheus.CounterVec
	findings       *prometheus.CounterVec
	pluginFailures *prometheus.CounterVec
}

// New creates a collector with all metrics registered.
func New() *Collector {
	// Custom registry (don't pollute default)
	c := &Collector{registry: prometheus.NewRegistry()}

	c.tasksSpawned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanhost_tasks_spawned_total",
			Help: "Tasks spawned by plugins",
		},
		[]string{"plugin"},
	)
	c.tasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanhost_tasks_finished_total",
			Help: "Tasks finished by plugins, by final state",
		},
		[]string{"plugin", "state"},
	)
	c.tasksRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scanhost_tasks_running",
			Help: "Tasks currently executing",
		},
		[]string{"plugin"},
	)
	c.interceptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanhost_network_interceptions_total",
			Help: "Must-stop network errors seen by plugin proxies, by recovery decision",
		},
		[]string{"plugin", "decision"},
	)
	c.findings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanhost_findings_emitted_total",
			Help: "Findings emitted to the output sink after deduplication",
		},
		[]string{"kind"},
	)
	c.pluginFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanhost_plugin_failures_total",
			Help: "Plugin runs that ended in an error",
		},
		[]string{"plugin"},
	)

	c.registry.MustRegister(
		c.tasksSpawned,
		c.tasksFinished,
		c.tasksRunning,
		c.interceptions,
		c.findings,
		c.pluginFailures,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) TaskSpawned(plugin string) {
	if c == nil {
		return
	}
	c.tasksSpawned.WithLabelValues(plugin).Inc()
}

func (c *Collector) TaskStarted(plugin string) {
	if c == nil {
		return
	}
	c.tasksRunning.WithLabelValues(plugin).Inc()
}

// TaskFinished records a task leaving the running state.
func (c *Collector) TaskFinished(plugin, state string) {
	if c == nil {
		return
	}
	c.tasksRunning.WithLabelValues(plugin).Dec()
	c.tasksFinished.WithLabelValues(plugin, state).Inc()
}

func (c *Collector) Interception(plugin, decision string) {
	if c == nil {
		return
	}
	c.interceptions.WithLabelValues(plugin, decision).Inc()
}

// FindingEmitted counts one finding handed to the output sink. kind is
// "vulnerability" or "information".
func (c *Collector) FindingEmitted(kind string) {
	if c == nil {
		return
	}
	c.findings.WithLabelValues(kind).Inc()
}

func (c *Collector) PluginFailed(plugin string) {
	if c == nil {
		return
	}
	c.pluginFailures.WithLabelValues(plugin).Inc()
}

// Server serves a collector over HTTP until Close is called.
type Server struct {
	srv      *http.Server
	listener net.Listener
	done     chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

// Serve starts the metrics endpoint on addr (default ":9090") at path
// (default "/metrics").
func Serve(c *Collector, addr, path string) (*Server, error) {
	if addr == "" {
		addr = defaults.MetricsAddr
	}
	if path == "" {
		path = defaults.MetricsPath
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())

	s := &Server{
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  duration.MetricsReadTimeout,
			WriteTimeout: duration.MetricsWriteTimeout,
		},
		listener: ln,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Close stops the server and returns any serve error.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	shutdownErr := s.srv.Shutdown(ctx)
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(shutdownErr, s.err)
}
