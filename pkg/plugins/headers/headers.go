// Package headers is an audit plugin reporting missing or weak HTTP
// security headers.
package headers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/waftester/scanhost/pkg/finding"
	"github.com/waftester/scanhost/pkg/netclient"
	"github.com/waftester/scanhost/pkg/plugin"
	"github.com/waftester/scanhost/pkg/report"
)

// Name is the plugin's declared name and its result store namespace.
const Name = "headers"

// Store keys under the headers namespace.
const (
	KeyMissing = "missing"
	KeyWeak    = "weak"
)

type check struct {
	expected []string // any substring marks the value as acceptable
	severity finding.Severity
	desc     string
}

var securityHeaders = map[string]check{
	"X-Frame-Options": {
		expected: []string{"deny", "sameorigin"},
		severity: finding.Medium,
		desc:     "Missing X-Frame-Options header allows clickjacking attacks",
	},
	"X-Content-Type-Options": {
		expected: []string{"nosniff"},
		severity: finding.Low,
		desc:     "Missing X-Content-Type-Options allows MIME-sniffing attacks",
	},
	"Strict-Transport-Security": {
		expected: []string{"max-age="},
		severity: finding.Medium,
		desc:     "Missing HSTS header allows protocol downgrade attacks",
	},
	"Content-Security-Policy": {
		expected: []string{"default-src", "script-src"},
		severity: finding.Medium,
		desc:     "Missing CSP header increases XSS risk",
	},
	"Referrer-Policy": {
		expected: []string{"no-referrer", "strict-origin", "same-origin"},
		severity: finding.Low,
		desc:     "Missing Referrer-Policy header may leak sensitive URLs",
	},
	"Permissions-Policy": {
		severity: finding.Low,
		desc:     "Missing Permissions-Policy header doesn't restrict browser features",
	},
}

// Plugin checks each configured path of the target concurrently.
type Plugin struct {
	plugin.Base
	paths []string
}

// New returns the plugin with its default options applied.
func New() *Plugin {
	return &Plugin{Base: plugin.NewBase(Name), paths: []string{"/"}}
}

func (p *Plugin) Type() string { return "audit" }

func (p *Plugin) Description() string { return "Checks responses for HTTP security headers" }

func (p *Plugin) LongDescription() (string, error) {
	return `Requests every configured path of the target and reports each security
header that is missing (a vulnerability keyed by URL and header name) or
present with a weak value (informational).

Options:
  paths  comma separated paths to check (default "/")`, nil
}

func (p *Plugin) Dependencies() ([]string, error) { return nil, nil }

func (p *Plugin) Options() (plugin.OptionList, error) {
	return plugin.OptionList{{
		Name:        "paths",
		Value:       strings.Join(p.paths, ","),
		Type:        plugin.TypeString,
		Description: "Comma separated paths to check",
	}}, nil
}

func (p *Plugin) Configure(opts plugin.OptionList) error {
	schema, _ := p.Options()
	merged, err := plugin.Merge(schema, opts)
	if err != nil {
		return err
	}
	var paths []string
	for _, s := range strings.Split(merged.String("paths"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			paths = append(paths, s)
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: paths is empty", plugin.ErrInvalidOption)
	}
	p.paths = paths
	return nil
}

// Run checks every path and reports one finding per (URL, header).
func (p *Plugin) Run(ctx context.Context, req *plugin.Request) (*plugin.Result, error) {
	base, err := url.Parse(req.Target)
	if err != nil {
		return nil, fmt.Errorf("headers: bad target %q: %w", req.Target, err)
	}

	for _, path := range p.paths {
		target := base.ResolveReference(&url.URL{Path: path}).String()
		p.Dispatch(ctx, path, func(ctx context.Context) error {
			return p.check(ctx, target, req.Header)
		})
	}

	if err := p.AwaitAll(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// Unreachable paths were already logged; report what was found.
		p.Logger().Debug("some paths could not be checked", slog.String("error", err.Error()))
	}

	missing := p.Store().All(Name, KeyMissing)
	weak := p.Store().All(Name, KeyWeak)
	if err := p.Report(missing, report.ByURLAndVariable); err != nil {
		return nil, err
	}
	if err := p.Report(weak, report.ByURLAndVariable); err != nil {
		return nil, err
	}
	return &plugin.Result{Plugin: Name, Findings: len(missing) + len(weak)}, nil
}

func (p *Plugin) check(ctx context.Context, target string, header map[string]string) error {
	var opts []netclient.RequestOption
	for k, v := range header {
		opts = append(opts, netclient.WithHeader(k, v))
	}
	resp, err := p.Client().Get(ctx, target, opts...)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(securityHeaders))
	for name := range securityHeaders {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := securityHeaders[name]
		value := resp.Header.Get(name)
		switch {
		case value == "":
			err = p.Append(Name, KeyMissing, finding.Finding{
				OriginURL:   target,
				Variable:    name,
				Name:        "missing-header",
				Description: fmt.Sprintf("%s at %s", c.desc, target),
				Severity:    c.severity,
			})
		case !acceptable(value, c.expected):
			err = p.Append(Name, KeyWeak, finding.Finding{
				OriginURL:   target,
				Variable:    name,
				Name:        "weak-header",
				Description: fmt.Sprintf("%s at %s has an unexpected value: %s", name, target, value),
				Attributes:  map[string]string{"value": value},
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func acceptable(value string, expected []string) bool {
	if len(expected) == 0 {
		return true
	}
	value = strings.ToLower(value)
	for _, exp := range expected {
		if strings.Contains(value, exp) {
			return true
		}
	}
	return false
}
