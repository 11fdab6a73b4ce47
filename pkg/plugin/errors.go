package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrRunOnce is returned by Run when a plugin has nothing left to do.
	// The host stops scheduling the plugin; it is not a failure.
	ErrRunOnce = errors.New("plugin: run once")

	// ErrNotBound is returned by Base helpers before Bind.
	ErrNotBound = errors.New("plugin: not bound to a host environment")

	ErrDuplicate         = errors.New("plugin: already registered")
	ErrNotFound          = errors.New("plugin: not found")
	ErrMissingDependency = errors.New("plugin: missing dependency")
	ErrUnknownOption     = errors.New("plugin: unknown option")
	ErrInvalidOption     = errors.New("plugin: invalid option value")
)

// ConfigurationError reports a required method the plugin does not
// implement. It is fatal for that plugin only.
type ConfigurationError struct {
	Plugin string
	Method string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("plugin %s is not implementing required method %s", e.Plugin, e.Method)
}
