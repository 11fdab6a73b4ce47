package output

import (
	"errors"

	"github.com/waftester/scanhost/pkg/finding"
)

// MultiSink fans every call out to several sinks in order.
type MultiSink []Sink

var _ Sink = MultiSink(nil)

func Multi(sinks ...Sink) MultiSink { return MultiSink(sinks) }

func (m MultiSink) EmitVulnerability(description string, severity finding.Severity) {
	for _, s := range m {
		s.EmitVulnerability(description, severity)
	}
}

func (m MultiSink) EmitInformation(description string) {
	for _, s := range m {
		s.EmitInformation(description)
	}
}

// Close closes every sink and joins their errors.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := Close(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
