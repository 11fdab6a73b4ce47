package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	goplugin "plugin"
	"sort"
	"sync"
	"time"
)

// Info describes a registered plugin.
type Info struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Description     string   `json:"description"`
	LongDescription string   `json:"long_description,omitempty"`
	Dependencies    []string `json:"dependencies,omitempty"`
	Done            bool     `json:"done,omitempty"`
}

// Outcome is one plugin's share of a RunAll round.
type Outcome struct {
	Plugin   string
	Result   *Result
	Err      error
	Duration time.Duration
}

// Host registers plugins, binds them to a shared Env and runs them with
// per-plugin fault isolation.
type Host struct {
	env    Env
	logger *slog.Logger

	mu      sync.RWMutex
	plugins map[Key]Plugin
	order   []Key
	done    map[Key]bool
}

// NewHost creates a host whose plugins share env.
func NewHost(env Env) *Host {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	return &Host{
		env:     env,
		logger:  env.Logger,
		plugins: make(map[Key]Plugin),
		done:    make(map[Key]bool),
	}
}

// Register binds p to the host environment and adds it.
func (h *Host) Register(p Plugin) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := p.Key()
	if _, ok := h.plugins[k]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, k)
	}
	Bind(p, h.env)
	h.plugins[k] = p
	h.order = append(h.order, k)
	return nil
}

// Get returns a plugin by name.
func (h *Host) Get(name string) (Plugin, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.plugins[Key{Name: name}]
	return p, ok
}

// List returns the registered plugin names, sorted.
func (h *Host) List() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.plugins))
	for k := range h.plugins {
		names = append(names, k.Name)
	}
	sort.Strings(names)
	return names
}

// Plugins returns the registered plugins in registration order.
func (h *Host) Plugins() []Plugin {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Plugin, 0, len(h.order))
	for _, k := range h.order {
		out = append(out, h.plugins[k])
	}
	return out
}

// Info returns information about all registered plugins, sorted by name.
// Required methods a plugin does not implement are left empty.
func (h *Host) Info() []Info {
	plugins := h.Plugins()

	h.mu.RLock()
	defer h.mu.RUnlock()

	info := make([]Info, 0, len(plugins))
	for _, p := range plugins {
		long, _ := p.LongDescription()
		deps, _ := p.Dependencies()
		info = append(info, Info{
			Name:            p.Name(),
			Type:            p.Type(),
			Description:     p.Description(),
			LongDescription: long,
			Dependencies:    deps,
			Done:            h.done[p.Key()],
		})
	}
	sort.Slice(info, func(i, j int) bool { return info[i].Name < info[j].Name })
	return info
}

// Configure hands each plugin its options; plugins without an entry get
// an empty list. Failures are joined and do not stop other plugins.
func (h *Host) Configure(options map[string]OptionList) error {
	var errs []error
	for _, p := range h.Plugins() {
		if err := p.Configure(options[p.Name()]); err != nil {
			errs = append(errs, fmt.Errorf("configure %s: %w", p.Name(), err))
		}
	}
	for name := range options {
		if _, ok := h.Get(name); !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNotFound, name))
		}
	}
	return errors.Join(errs...)
}

// CheckDependencies verifies that every plugin declares its dependencies
// and that each one is registered.
func (h *Host) CheckDependencies() error {
	plugins := h.Plugins()

	var errs []error
	for _, p := range plugins {
		deps, err := p.Dependencies()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, dep := range deps {
			if !ContainsKey(plugins, Key{Name: dep}) {
				errs = append(errs, fmt.Errorf("%w: %s needs %s", ErrMissingDependency, p.Name(), dep))
			}
		}
	}
	return errors.Join(errs...)
}

// Run runs a single plugin.
func (h *Host) Run(ctx context.Context, name string, req *Request) (*Result, error) {
	p, ok := h.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	o := h.run(ctx, p, req)
	return o.Result, o.Err
}

// RunAll runs every plugin that has not finished concurrently. A plugin
// that fails or panics does not affect the others. Plugins returning
// ErrRunOnce are marked done and skipped in later rounds.
func (h *Host) RunAll(ctx context.Context, req *Request) []Outcome {
	var pending []Plugin
	for _, p := range h.Plugins() {
		if !h.Done(p.Name()) {
			pending = append(pending, p)
		}
	}

	outcomes := make([]Outcome, len(pending))
	var wg sync.WaitGroup
	for i, p := range pending {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = h.run(ctx, p, req)
		}()
	}
	wg.Wait()
	return outcomes
}

func (h *Host) run(ctx context.Context, p Plugin, req *Request) (o Outcome) {
	start := time.Now()
	o.Plugin = p.Name()
	defer func() {
		if r := recover(); r != nil {
			o.Err = fmt.Errorf("plugin %s panicked: %v", p.Name(), r)
		}
		o.Duration = time.Since(start)

		switch {
		case o.Err == nil:
		case errors.Is(o.Err, ErrRunOnce):
			h.markDone(p.Key())
			o.Err = nil
		default:
			h.env.Metrics.PluginFailed(p.Name())
			h.logger.Error("plugin failed",
				slog.String("plugin", p.Name()),
				slog.String("error", o.Err.Error()),
			)
		}
	}()

	o.Result, o.Err = p.Run(ctx, req)
	return o
}

// Done reports whether the named plugin has returned ErrRunOnce.
func (h *Host) Done(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done[Key{Name: name}]
}

func (h *Host) markDone(k Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done[k] = true
}

// End calls End on every plugin and joins the errors.
func (h *Host) End() error {
	var errs []error
	for _, p := range h.Plugins() {
		if err := p.End(); err != nil {
			errs = append(errs, fmt.Errorf("end %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LoadPlugin loads a Go plugin (.so) exporting a symbol named Plugin of a
// type implementing Plugin, and registers it.
func (h *Host) LoadPlugin(path string) error {
	so, err := goplugin.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open plugin %s: %w", path, err)
	}

	sym, err := so.Lookup("Plugin")
	if err != nil {
		return fmt.Errorf("plugin %s does not export Plugin: %w", path, err)
	}

	p, ok := sym.(Plugin)
	if !ok {
		ptr, ok := sym.(*Plugin)
		if !ok {
			return fmt.Errorf("plugin %s: Plugin does not implement the plugin interface", path)
		}
		p = *ptr
	}
	return h.Register(p)
}

// LoadAll loads every .so file in dir. A missing directory is not an error.
func (h *Host) LoadAll(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.so"))
	if err != nil {
		return fmt.Errorf("failed to glob plugins: %w", err)
	}

	var errs []error
	for _, file := range files {
		if err := h.LoadPlugin(file); err != nil {
			errs = append(errs, err) // Keep trying other plugins
		}
	}
	return errors.Join(errs...)
}
