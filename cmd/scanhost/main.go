// Command scanhost runs scan plugins against a target.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/waftester/scanhost/pkg/defaults"
	"github.com/waftester/scanhost/pkg/plugin"
	"github.com/waftester/scanhost/pkg/plugins/headers"
	"github.com/waftester/scanhost/pkg/plugins/mailfinder"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run", "scan":
		err = runScan(context.Background(), os.Args[2:], os.Stderr)
	case "list", "plugins":
		err = runList(os.Args[2:], os.Stdout, os.Stderr)
	case "version", "-version", "--version":
		fmt.Printf("%s %s\n", defaults.ToolName, defaults.Version)
	case "-h", "--help", "help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s %s - plugin host for web scans

Usage:
  %[1]s run  [flags] <target>   Run plugins against target
  %[1]s list [flags]            List available plugins
  %[1]s version                 Print version

Run '%[1]s <command> -h' for command flags.
`, defaults.ToolName, defaults.Version)
}

// builtins returns fresh instances of the compiled-in plugins.
func builtins() []plugin.Plugin {
	return []plugin.Plugin{
		headers.New(),
		mailfinder.New(),
	}
}

// newHost registers the enabled built-ins and every plugin found in dir.
// An empty enabled list means all.
func newHost(env plugin.Env, enabled []string, dir string) (*plugin.Host, error) {
	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		want[name] = true
	}

	host := plugin.NewHost(env)
	for _, p := range builtins() {
		if len(want) > 0 && !want[p.Name()] {
			continue
		}
		if err := host.Register(p); err != nil {
			return nil, err
		}
	}
	if dir != "" {
		if err := host.LoadAll(dir); err != nil {
			return nil, err
		}
	}

	var errs []error
	for _, name := range enabled {
		if _, ok := host.Get(name); !ok {
			errs = append(errs, fmt.Errorf("%w: %s", plugin.ErrNotFound, name))
		}
	}
	return host, errors.Join(errs...)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
