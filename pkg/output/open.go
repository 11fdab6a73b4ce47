package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// Formats lists the names accepted by Open.
var Formats = []string{"console", "jsonl", "template", "pdf"}

// Options configures Open.
type Options struct {
	// Format is one of Formats (default: console).
	Format string

	// Path is the output file; empty means stdout.
	Path string

	// Template configures the template format.
	Template TemplateConfig

	// NoColor disables console colors.
	NoColor bool
}

// Open builds the sink for opts.Format.
func Open(opts Options) (Sink, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if !slices.Contains(Formats, format) {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownFormat, opts.Format, strings.Join(Formats, ", "))
	}
	if format == "pdf" && opts.Path == "" {
		return nil, errors.New("output: pdf format needs an output file")
	}

	// Sinks close their writer on Close; stdout must survive that.
	var w io.Writer = struct{ io.Writer }{os.Stdout}
	if format == "console" && opts.Path == "" {
		w = os.Stdout
	}
	if opts.Path != "" {
		f, err := os.Create(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("output: create %s: %w", opts.Path, err)
		}
		w = f
	}

	switch format {
	case "jsonl":
		return NewJSONLSink(w), nil
	case "template":
		s, err := NewTemplateSink(w, opts.Template)
		if err != nil {
			if c, ok := w.(io.Closer); ok {
				_ = c.Close()
			}
			return nil, err
		}
		return s, nil
	case "pdf":
		return NewPDFSink(w, ""), nil
	default:
		return NewConsoleSink(w, opts.NoColor || opts.Path != ""), nil
	}
}
