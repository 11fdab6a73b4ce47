package finding

import "errors"

// Sentinel errors for malformed findings.
// Callers should use errors.Is() to check for these.
var (
	// ErrMissingURL indicates a finding without an origin URL. Every
	// finding must say where it was observed.
	ErrMissingURL = errors.New("finding: missing origin url")

	// ErrMissingPlugin indicates a finding that does not name the plugin
	// that produced it.
	ErrMissingPlugin = errors.New("finding: missing plugin name")

	// ErrInvalidSeverity indicates a severity outside the known levels.
	ErrInvalidSeverity = errors.New("finding: invalid severity")
)
