package finding

import (
	"fmt"
	"maps"
)

// Finding is a single reportable result produced by a plugin task.
type Finding struct {
	// OriginURL is where the finding was observed.
	OriginURL string `json:"url"`

	// Variable is the parameter, header or field involved (optional).
	Variable string `json:"variable,omitempty"`

	// Name is a short label, e.g. the mail address found.
	Name string `json:"name,omitempty"`

	// Description is the human readable message sent to the output sink.
	Description string `json:"description"`

	// Severity is empty for informational findings.
	Severity Severity `json:"severity,omitempty"`

	// Plugin is the declared name of the plugin that created the finding.
	Plugin string `json:"plugin"`

	// Attributes carries plugin specific data (mail, user, ...).
	Attributes map[string]string `json:"attributes,omitempty"`
}

// IsVulnerability reports whether f carries a severity.
func (f Finding) IsVulnerability() bool {
	return f.Severity != ""
}

// Validate checks the fields every finding must carry.
func (f Finding) Validate() error {
	if f.OriginURL == "" {
		return ErrMissingURL
	}
	if f.Plugin == "" {
		return ErrMissingPlugin
	}
	if f.Severity != "" && !f.Severity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, f.Severity)
	}
	return nil
}

// Clone returns a copy of f that shares no maps with the original.
func (f Finding) Clone() Finding {
	if f.Attributes != nil {
		f.Attributes = maps.Clone(f.Attributes)
	}
	return f
}

// String returns a compact one-line form for logs.
func (f Finding) String() string {
	if f.Variable != "" {
		return fmt.Sprintf("[%s] %s (%s): %s", f.Plugin, f.OriginURL, f.Variable, f.Description)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Plugin, f.OriginURL, f.Description)
}
