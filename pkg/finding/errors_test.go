package finding

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("storing: %w", ErrMissingURL)
	if !errors.Is(wrapped, ErrMissingURL) {
		t.Error("errors.Is must work through wrapping for ErrMissingURL")
	}
	if errors.Is(wrapped, ErrMissingPlugin) {
		t.Error("must not match different sentinel")
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	sentinels := []error{ErrMissingURL, ErrMissingPlugin, ErrInvalidSeverity}
	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			if errors.Is(sentinels[i], sentinels[j]) {
				t.Errorf("sentinel %d and %d must be distinct", i, j)
			}
		}
	}
}
