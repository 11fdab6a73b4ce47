// Package output delivers reported findings to the operator.
//
// A Sink receives one call per finding that survived deduplication.
// Sinks are safe for concurrent use because plugins report in parallel.
// Sinks that buffer (template, PDF) render on Close.
package output

import (
	"errors"
	"time"

	"github.com/waftester/scanhost/pkg/finding"
)

// ErrUnknownFormat is returned by Open for an unsupported format name.
var ErrUnknownFormat = errors.New("output: unknown format")

// Sink is the destination of reported findings.
type Sink interface {
	EmitVulnerability(description string, severity finding.Severity)
	EmitInformation(description string)
}

// Closer is implemented by sinks that hold resources or render on close.
type Closer interface {
	Close() error
}

// Kind distinguishes the two emit calls.
type Kind string

const (
	KindVulnerability Kind = "vulnerability"
	KindInformation   Kind = "information"
)

// Entry is one emitted finding as buffering sinks keep it.
type Entry struct {
	Kind        Kind             `json:"kind"`
	Description string           `json:"description"`
	Severity    finding.Severity `json:"severity,omitempty"`
	Time        time.Time        `json:"time"`
}

// Close closes s if it implements Closer.
func Close(s Sink) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
