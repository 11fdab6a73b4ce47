// Package report turns accumulated findings into the deduplicated stream
// handed to the output sink.
//
// Findings are filtered by a Policy, keeping the first finding per key in
// input order. Input order is whatever order the caller drained the
// findings in, usually kb.Store append order, not task spawn order.
package report

import (
	"log/slog"

	"github.com/spaolacci/murmur3"
	"github.com/waftester/scanhost/pkg/finding"
	"github.com/waftester/scanhost/pkg/metrics"
	"github.com/waftester/scanhost/pkg/output"
)

// Reporter filters findings and emits the survivors to a sink.
type Reporter struct {
	sink    output.Sink
	logger  *slog.Logger
	metrics *metrics.Collector
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the logger used for rejected report calls.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) { r.logger = l }
}

// WithMetrics counts emitted findings on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Reporter) { r.metrics = c }
}

func New(sink output.Sink, opts ...Option) *Reporter {
	r := &Reporter{sink: sink}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Report emits the findings that survive policy, in input order. An
// undefined policy is logged and returned as *InvalidPolicyError, and
// nothing reaches the sink.
func (r *Reporter) Report(findings []finding.Finding, policy Policy) error {
	kept, err := Filter(findings, policy)
	if err != nil {
		r.logger.Error("report rejected",
			slog.String("policy", string(policy)),
			slog.Int("findings", len(findings)),
			slog.String("error", err.Error()),
		)
		return err
	}

	for _, f := range kept {
		if f.IsVulnerability() {
			r.sink.EmitVulnerability(f.Description, f.Severity)
			r.metrics.FindingEmitted(string(output.KindVulnerability))
			continue
		}
		r.sink.EmitInformation(f.Description)
		r.metrics.FindingEmitted(string(output.KindInformation))
	}
	return nil
}

// Filter returns the findings that survive policy, first seen wins.
// With None the input is returned as a new slice of the same length.
func Filter(findings []finding.Finding, policy Policy) ([]finding.Finding, error) {
	if !policy.Valid() {
		return nil, &InvalidPolicyError{Policy: policy}
	}
	if policy == None || policy == "" {
		return append([]finding.Finding(nil), findings...), nil
	}

	seen := make(map[[2]uint64]struct{}, len(findings))
	kept := make([]finding.Finding, 0, len(findings))
	for _, f := range findings {
		k := key(f, policy)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, f)
	}
	return kept, nil
}

// key hashes the uniqueness key of f under policy.
func key(f finding.Finding, policy Policy) [2]uint64 {
	h := murmur3.New128()
	_, _ = h.Write([]byte(f.OriginURL))
	if policy == ByURLAndVariable {
		// NUL cannot appear in a URL, so ("a", "bc") and ("ab", "c") differ.
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(f.Variable))
	}
	h1, h2 := h.Sum128()
	return [2]uint64{h1, h2}
}
