package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/waftester/scanhost/pkg/plugin"
	"github.com/waftester/scanhost/pkg/ui"
)

func runList(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("plugin-dir", "", "Directory of .so plugins")
	asJSON := fs.Bool("json", false, "Print JSON")
	long := fs.Bool("long", false, "Include long descriptions")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	host, err := newHost(plugin.Env{Logger: newLogger(stderr, slog.LevelWarn)}, nil, *dir)
	if err != nil {
		return err
	}
	infos := host.Info()
	if !*long {
		for i := range infos {
			infos[i].LongDescription = ""
		}
	}

	if *asJSON {
		if err := json.MarshalWrite(stdout, infos, jsontext.WithIndent("  ")); err != nil {
			return err
		}
		_, err := io.WriteString(stdout, "\n")
		return err
	}

	r := ui.Renderer(stdout, *noColor)
	name := r.NewStyle().Inherit(ui.PluginStyle)
	muted := r.NewStyle().Inherit(ui.BracketStyle)
	for _, info := range infos {
		fmt.Fprintf(stdout, "%s %s %s\n",
			name.Render(info.Name),
			muted.Render("["+info.Type+"]"),
			info.Description,
		)
		if len(info.Dependencies) > 0 {
			fmt.Fprintf(stdout, "    depends on: %s\n", strings.Join(info.Dependencies, ", "))
		}
		if info.LongDescription != "" {
			for _, line := range strings.Split(info.LongDescription, "\n") {
				fmt.Fprintln(stdout, "    "+line)
			}
		}
	}
	return nil
}
