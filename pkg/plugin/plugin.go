package plugin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/waftester/scanhost/pkg/netproxy"
)

// Plugin is implemented by every scanhost plugin. Only types embedding
// Base satisfy it.
type Plugin interface {
	Key() Key
	Name() string
	Type() string
	Description() string
	LongDescription() (string, error)
	Dependencies() ([]string, error)

	Options() (OptionList, error)
	Configure(opts OptionList) error
	Run(ctx context.Context, req *Request) (*Result, error)
	End() error

	netproxy.RecoveryHandler

	base() *Base
}

// Key identifies a plugin by its declared name. Two plugin instances with
// the same declared name are the same plugin.
type Key struct {
	Name string
}

func (k Key) Equal(o Key) bool { return k.Name == o.Name }

func (k Key) String() string { return k.Name }

// Request is one invocation of a plugin.
type Request struct {
	ScanID uuid.UUID
	Target string
	Header map[string]string
}

// NewRequest starts a request with a fresh scan id.
func NewRequest(target string) *Request {
	return &Request{ScanID: uuid.New(), Target: target}
}

// Result is what a plugin run reports back to the host.
type Result struct {
	Plugin string

	// Discovered holds new URLs found by discovery plugins.
	Discovered []string

	// Findings counts the findings the run stored.
	Findings int

	Duration time.Duration
}

// Unique returns plugins with duplicates by key removed, first one wins.
func Unique(plugins []Plugin) []Plugin {
	out := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		if !ContainsKey(out, p.Key()) {
			out = append(out, p)
		}
	}
	return out
}

// ContainsKey reports whether any plugin in plugins has key k.
func ContainsKey(plugins []Plugin, k Key) bool {
	for _, p := range plugins {
		if p.Key().Equal(k) {
			return true
		}
	}
	return false
}
