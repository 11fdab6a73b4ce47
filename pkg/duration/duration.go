// Package duration provides canonical time constants for the plugin host.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	client := netclient.NewHTTP(netclient.HTTPConfig{Timeout: duration.HTTPScanning})
//	ctx, cancel := cli.SignalContext(duration.ShutdownGrace)
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// HTTP CLIENT TIMEOUTS
// ============================================================================

const (
	// HTTPScanning is the default per-request timeout (15s)
	HTTPScanning = 15 * time.Second

	// HTTPDial is the connection establishment timeout (10s)
	HTTPDial = 10 * time.Second

	// HTTPTLSHandshake is the TLS handshake timeout (10s)
	HTTPTLSHandshake = 10 * time.Second

	// HTTPIdleConn is how long idle connections stay pooled (90s)
	HTTPIdleConn = 90 * time.Second

	// HTTPKeepAlive is the TCP keep-alive period (30s)
	HTTPKeepAlive = 30 * time.Second
)

// ============================================================================
// CACHE DURATIONS
// ============================================================================

const (
	// HostErrorExpiry is how long a failed host stays blocked (5min)
	HostErrorExpiry = 5 * time.Minute
)

// ============================================================================
// LIFECYCLE
// ============================================================================

const (
	// ShutdownGrace is how long a second interrupt is awaited before a hard
	// exit (10s)
	ShutdownGrace = 10 * time.Second

	// TelemetryShutdown bounds flushing spans and stopping servers (5s)
	TelemetryShutdown = 5 * time.Second

	// TelemetryConnect bounds establishing the OTLP exporter (10s)
	TelemetryConnect = 10 * time.Second

	// MetricsReadTimeout is the metrics server read timeout (5s)
	MetricsReadTimeout = 5 * time.Second

	// MetricsWriteTimeout is the metrics server write timeout (10s)
	MetricsWriteTimeout = 10 * time.Second
)
