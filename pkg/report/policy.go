package report

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy is wrapped by every *InvalidPolicyError.
var ErrInvalidPolicy = errors.New("report: invalid dedup policy")

// Policy selects the uniqueness key applied when reporting.
type Policy string

const (
	// ByURL keeps the first finding per origin URL.
	ByURL Policy = "URL"

	// ByURLAndVariable keeps the first finding per (origin URL, variable).
	ByURLAndVariable Policy = "VAR"

	// None keeps every finding. The empty Policy means None as well.
	None Policy = "NONE"
)

var policyAliases = map[string]Policy{
	"URL":                 ByURL,
	"BY_URL":              ByURL,
	"VAR":                 ByURLAndVariable,
	"BY_URL_AND_VARIABLE": ByURLAndVariable,
	"NONE":                None,
	"":                    None,
}

// ParsePolicy maps a case-insensitive policy name to a Policy.
func ParsePolicy(s string) (Policy, error) {
	p, ok := policyAliases[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", &InvalidPolicyError{Policy: Policy(s)}
	}
	return p, nil
}

// Valid reports whether p is one of the defined policies.
func (p Policy) Valid() bool {
	switch p {
	case ByURL, ByURLAndVariable, None, "":
		return true
	}
	return false
}

func (p Policy) String() string {
	if p == "" {
		return string(None)
	}
	return string(p)
}

// InvalidPolicyError reports a policy value that is not defined.
type InvalidPolicyError struct {
	Policy Policy
}

func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("%v: %q (want URL, VAR or NONE)", ErrInvalidPolicy, string(e.Policy))
}

func (e *InvalidPolicyError) Unwrap() error { return ErrInvalidPolicy }
