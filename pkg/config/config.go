// Package config loads scan configuration from a YAML file overlaid by
// command line flags. Flags the user actually set win over the file; the
// file wins over built-in defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/waftester/scanhost/pkg/defaults"
	"github.com/waftester/scanhost/pkg/duration"
	"github.com/waftester/scanhost/pkg/netclient"
	"github.com/waftester/scanhost/pkg/output"
	"github.com/waftester/scanhost/pkg/plugin"
	"github.com/waftester/scanhost/pkg/telemetry"
	"gopkg.in/yaml.v3"
)

// Config holds everything a scan needs.
type Config struct {
	// Target settings
	Target string `yaml:"target"`

	// Execution settings
	Concurrency   int           `yaml:"concurrency"`     // Worker pool size (default: 20)
	RateLimit     int           `yaml:"rate_limit"`      // Requests per second, 0 = unlimited (default: 150)
	Timeout       time.Duration `yaml:"timeout"`         // HTTP timeout (default: 15s)
	MaxHostErrors int           `yaml:"max_host_errors"` // Failures before a host fails fast (default: 5)

	// Network settings
	Proxy      string            `yaml:"proxy"`
	SkipVerify bool              `yaml:"skip_verify"`
	UserAgent  string            `yaml:"user_agent"`
	Headers    map[string]string `yaml:"headers"`

	Output  OutputConfig  `yaml:"output"`
	Plugins PluginsConfig `yaml:"plugins"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`

	Verbose bool `yaml:"verbose"`
}

// OutputConfig selects the finding sink.
type OutputConfig struct {
	Format   string `yaml:"format"` // console, jsonl, template, pdf
	File     string `yaml:"file"`   // empty = stdout
	Template string `yaml:"template"`
	NoColor  bool   `yaml:"no_color"`
}

// PluginsConfig selects and configures plugins.
type PluginsConfig struct {
	// Enabled lists plugin names to run; empty runs every registered plugin.
	Enabled []string `yaml:"enabled"`

	// Dir holds .so plugins loaded at startup.
	Dir string `yaml:"dir"`

	// Options maps plugin name to option name to raw value.
	Options map[string]map[string]string `yaml:"options"`
}

// MetricsConfig enables the prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Concurrency:   defaults.Concurrency,
		RateLimit:     defaults.RateLimit,
		Timeout:       duration.HTTPScanning,
		MaxHostErrors: defaults.MaxHostErrors,
		SkipVerify:    true,
		UserAgent:     defaults.UserAgent,
		Headers:       map[string]string{},
		Output:        OutputConfig{Format: "console"},
		Plugins:       PluginsConfig{Options: map[string]map[string]string{}},
		Metrics:       MetricsConfig{Path: defaults.MetricsPath},
	}
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	return Load(f)
}

// Load decodes YAML from r on top of Default. Unknown keys are rejected.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	if cfg.Plugins.Options == nil {
		cfg.Plugins.Options = map[string]map[string]string{}
	}
	return cfg, nil
}

// Parse registers flags on fs, parses args and returns the merged
// configuration. A positional argument is taken as the target.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	var path string
	fs.StringVar(&path, "config", "", "YAML configuration file")

	fl := Default()
	var (
		enabled listFlag
		opts    = pluginOptionFlag{}
		headers = headerFlag{}
	)

	// === TARGET ===
	fs.StringVar(&fl.Target, "target", "", "Target URL")
	fs.StringVar(&fl.Target, "u", "", "Target URL (alias)")

	// === EXECUTION ===
	fs.IntVar(&fl.Concurrency, "concurrency", fl.Concurrency, "Worker pool size")
	fs.IntVar(&fl.Concurrency, "c", fl.Concurrency, "Worker pool size (alias)")
	fs.IntVar(&fl.RateLimit, "rate-limit", fl.RateLimit, "Max requests per second (0 = unlimited)")
	fs.IntVar(&fl.RateLimit, "rl", fl.RateLimit, "Rate limit (alias)")
	fs.DurationVar(&fl.Timeout, "timeout", fl.Timeout, "HTTP timeout")
	fs.IntVar(&fl.MaxHostErrors, "max-host-errors", fl.MaxHostErrors, "Failures before a host fails fast")

	// === NETWORK ===
	fs.StringVar(&fl.Proxy, "proxy", "", "HTTP proxy URL")
	fs.StringVar(&fl.Proxy, "x", "", "Proxy (alias)")
	fs.BoolVar(&fl.SkipVerify, "skip-verify", fl.SkipVerify, "Skip TLS verification")
	fs.BoolVar(&fl.SkipVerify, "k", fl.SkipVerify, "Skip TLS (alias)")
	fs.StringVar(&fl.UserAgent, "user-agent", fl.UserAgent, "User-Agent header")
	fs.Var(headers, "H", "Extra request header 'Name: value' (repeatable)")

	// === OUTPUT ===
	fs.StringVar(&fl.Output.Format, "format", fl.Output.Format, "Output format: "+strings.Join(output.Formats, ","))
	fs.StringVar(&fl.Output.File, "output", "", "Output file path")
	fs.StringVar(&fl.Output.File, "o", "", "Output file (alias)")
	fs.StringVar(&fl.Output.Template, "template", "", "Template file, or builtin: text, csv")
	fs.BoolVar(&fl.Output.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&fl.Output.NoColor, "nc", false, "No color (alias)")
	fs.BoolVar(&fl.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&fl.Verbose, "v", false, "Verbose (alias)")

	// === PLUGINS ===
	fs.Var(&enabled, "plugins", "Comma-separated plugins to run (default: all)")
	fs.Var(&enabled, "p", "Plugins (alias)")
	fs.Var(opts, "plugin-opt", "Plugin option 'plugin.option=value' (repeatable)")
	fs.StringVar(&fl.Plugins.Dir, "plugin-dir", "", "Directory of .so plugins")

	// === OBSERVABILITY ===
	fs.StringVar(&fl.Metrics.Addr, "metrics-addr", "", "Serve prometheus metrics on this address")
	fs.StringVar(&fl.Tracing.Endpoint, "otel-endpoint", "", "OTLP gRPC endpoint for traces")
	fs.BoolVar(&fl.Tracing.Insecure, "otel-insecure", false, "Plaintext OTLP connection")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target", "u":
			cfg.Target = fl.Target
		case "concurrency", "c":
			cfg.Concurrency = fl.Concurrency
		case "rate-limit", "rl":
			cfg.RateLimit = fl.RateLimit
		case "timeout":
			cfg.Timeout = fl.Timeout
		case "max-host-errors":
			cfg.MaxHostErrors = fl.MaxHostErrors
		case "proxy", "x":
			cfg.Proxy = fl.Proxy
		case "skip-verify", "k":
			cfg.SkipVerify = fl.SkipVerify
		case "user-agent":
			cfg.UserAgent = fl.UserAgent
		case "H":
			for k, v := range headers {
				cfg.Headers[k] = v
			}
		case "format":
			cfg.Output.Format = fl.Output.Format
		case "output", "o":
			cfg.Output.File = fl.Output.File
		case "template":
			cfg.Output.Template = fl.Output.Template
		case "no-color", "nc":
			cfg.Output.NoColor = fl.Output.NoColor
		case "verbose", "v":
			cfg.Verbose = fl.Verbose
		case "plugins", "p":
			cfg.Plugins.Enabled = enabled
		case "plugin-opt":
			for name, m := range opts {
				if cfg.Plugins.Options[name] == nil {
					cfg.Plugins.Options[name] = map[string]string{}
				}
				for k, v := range m {
					cfg.Plugins.Options[name][k] = v
				}
			}
		case "plugin-dir":
			cfg.Plugins.Dir = fl.Plugins.Dir
		case "metrics-addr":
			cfg.Metrics.Addr = fl.Metrics.Addr
		case "otel-endpoint":
			cfg.Tracing.Endpoint = fl.Tracing.Endpoint
		case "otel-insecure":
			cfg.Tracing.Insecure = fl.Tracing.Insecure
		}
	})

	if fs.NArg() > 0 && cfg.Target == "" {
		cfg.Target = fs.Arg(0)
	}

	return cfg, nil
}

// Validate checks ranges and required fields.
func (c *Config) Validate() error {
	var errs []error

	if c.Target == "" {
		errs = append(errs, fmt.Errorf("%w: target (use -u or a positional argument)", ErrMissingRequired))
	} else if u, err := url.Parse(c.Target); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%w: target %q must be an http(s) URL", ErrInvalidConfig, c.Target))
	}

	if c.Concurrency < defaults.ConcurrencyMin || c.Concurrency > defaults.ConcurrencyMax {
		errs = append(errs, fmt.Errorf("%w: concurrency %d outside [%d, %d]",
			ErrInvalidConfig, c.Concurrency, defaults.ConcurrencyMin, defaults.ConcurrencyMax))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: rate limit %d is negative", ErrInvalidConfig, c.RateLimit))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig))
	}
	if c.MaxHostErrors < 1 {
		errs = append(errs, fmt.Errorf("%w: max host errors must be at least 1", ErrInvalidConfig))
	}
	if c.Proxy != "" {
		if u, err := url.Parse(c.Proxy); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: proxy %q", ErrInvalidConfig, c.Proxy))
		}
	}

	format := strings.ToLower(c.Output.Format)
	if format != "" && !slices.Contains(output.Formats, format) {
		errs = append(errs, fmt.Errorf("%w: output format %q", ErrInvalidConfig, c.Output.Format))
	}
	if format == "pdf" && c.Output.File == "" {
		errs = append(errs, fmt.Errorf("%w: pdf output needs a file", ErrMissingRequired))
	}
	if format == "template" && c.Output.Template == "" {
		errs = append(errs, fmt.Errorf("%w: template output needs -template", ErrMissingRequired))
	}

	return errors.Join(errs...)
}

// HTTPConfig maps the network settings onto the HTTP client.
func (c *Config) HTTPConfig() netclient.HTTPConfig {
	h := netclient.DefaultHTTPConfig()
	h.Timeout = c.Timeout
	h.InsecureSkipVerify = c.SkipVerify
	h.Proxy = c.Proxy
	h.RateLimit = c.RateLimit
	h.MaxHostErrors = c.MaxHostErrors
	h.UserAgent = c.UserAgent
	h.Headers = c.Headers
	return h
}

// OutputOptions maps the output settings onto output.Open.
func (c *Config) OutputOptions() output.Options {
	o := output.Options{
		Format:  c.Output.Format,
		Path:    c.Output.File,
		NoColor: c.Output.NoColor,
	}
	switch c.Output.Template {
	case "":
	case "text", "csv":
		o.Template.BuiltIn = c.Output.Template
	default:
		o.Template.Path = c.Output.Template
	}
	return o
}

// TelemetryOptions maps the tracing settings onto telemetry.Setup.
func (c *Config) TelemetryOptions() telemetry.Options {
	return telemetry.Options{
		Endpoint:    c.Tracing.Endpoint,
		ServiceName: defaults.ToolName,
		Insecure:    c.Tracing.Insecure,
	}
}

// PluginOptions returns the configured options per plugin, sorted by name.
func (c *Config) PluginOptions() map[string]plugin.OptionList {
	out := make(map[string]plugin.OptionList, len(c.Plugins.Options))
	for name, m := range c.Plugins.Options {
		out[name] = plugin.OptionsFromMap(m)
	}
	return out
}

// LogLevel is debug when verbose, info otherwise.
func (c *Config) LogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// listFlag collects comma-separated or repeated values.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

// headerFlag collects "Name: value" pairs.
type headerFlag map[string]string

func (h headerFlag) String() string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k+": "+h[k])
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

func (h headerFlag) Set(v string) error {
	name, value, ok := strings.Cut(v, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header %q: want 'Name: value'", v)
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(value)
	return nil
}

// pluginOptionFlag collects "plugin.option=value" settings.
type pluginOptionFlag map[string]map[string]string

func (p pluginOptionFlag) String() string {
	var parts []string
	for name, m := range p {
		for k, v := range m {
			parts = append(parts, name+"."+k+"="+v)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (p pluginOptionFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	name, opt, dotted := strings.Cut(key, ".")
	if !ok || !dotted || name == "" || opt == "" {
		return fmt.Errorf("plugin option %q: want 'plugin.option=value'", v)
	}
	if p[name] == nil {
		p[name] = map[string]string{}
	}
	p[name][opt] = value
	return nil
}
