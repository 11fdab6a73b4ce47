// Package defaults provides canonical default values for the plugin host.
// This is the SINGLE SOURCE OF TRUTH for runtime configuration defaults.
//
// Usage:
//
//	pool := workerpool.New(defaults.Concurrency)
//	limiter := rate.NewLimiter(rate.Limit(defaults.RateLimit), defaults.RateBurst)
//
// DO NOT use hardcoded values like `Concurrency: 10` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

import "fmt"

// Version is the current scanhost version
const Version = "0.3.0"

// ToolName is the name used in banners, user agents and telemetry.
const ToolName = "scanhost"

// UserAgent is sent on every request issued by the HTTP client.
var UserAgent = fmt.Sprintf("%s/%s", ToolName, Version)

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================
//
// Worker pool sizing for plugin tasks. Tasks are network bound, so the
// pool is sized well above the CPU count.
// ============================================================================

const (
	// Concurrency is the default worker pool size (20)
	Concurrency = 20

	// ConcurrencyMin is the smallest accepted pool size (1)
	ConcurrencyMin = 1

	// ConcurrencyMax caps the pool size (256)
	ConcurrencyMax = 256
)

// ============================================================================
// NETWORK SETTINGS
// ============================================================================

const (
	// RateLimit is the default requests per second across all plugins (150)
	RateLimit = 150

	// RateBurst allows short bursts above the steady rate (10)
	RateBurst = 10

	// MaxHostErrors is how many network failures a host may produce before
	// requests to it fail with a must-stop error (5)
	MaxHostErrors = 5

	// MaxBodySize caps how much of a response body is read (10 MiB)
	MaxBodySize = 10 << 20
)

// ============================================================================
// PLUGIN SETTINGS
// ============================================================================

const (
	// MailResultLimit is how many search results the mail finder fetches (300)
	MailResultLimit = 300

	// MetricsAddr is where the prometheus endpoint listens when enabled
	MetricsAddr = ":9090"

	// MetricsPath is the prometheus scrape path
	MetricsPath = "/metrics"

	// OTelEndpoint is the default OTLP gRPC collector
	OTelEndpoint = "localhost:4317"
)
