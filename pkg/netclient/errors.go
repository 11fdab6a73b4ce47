package netclient

import (
	"errors"
	"fmt"
)

// Sentinel errors for client failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrHostBlocked indicates the host exceeded the network error
	// threshold and requests to it fail fast.
	ErrHostBlocked = errors.New("netclient: host exceeded error threshold")

	// ErrInvalidURL indicates a request URL that could not be parsed.
	ErrInvalidURL = errors.New("netclient: invalid url")
)

// MustStopError reports a network failure on a URL that the caller should
// decide whether to tolerate. It is the only error a plugin's network error
// hook may suppress.
type MustStopError struct {
	URL     string
	Message string
	Err     error
}

// NewMustStopError builds a MustStopError. err may be nil.
func NewMustStopError(url, message string, err error) *MustStopError {
	return &MustStopError{URL: url, Message: message, Err: err}
}

func (e *MustStopError) Error() string {
	return fmt.Sprintf("netclient: must stop on %q: %s", e.URL, e.Message)
}

func (e *MustStopError) Unwrap() error { return e.Err }

// AsMustStop returns the MustStopError in err's chain, if any.
func AsMustStop(err error) (*MustStopError, bool) {
	var ms *MustStopError
	if errors.As(err, &ms) {
		return ms, true
	}
	return nil, false
}
