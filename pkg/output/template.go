package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/waftester/scanhost/pkg/ui"
)

// TemplateConfig selects the template a TemplateSink renders.
type TemplateConfig struct {
	// Path is a template file.
	Path string

	// Text is an inline template (alternative to Path).
	Text string

	// BuiltIn names a bundled template: "text" or "csv".
	BuiltIn string
}

var builtInTemplates = map[string]string{
	"text": `scanhost report ({{ .Generated }})
{{ len .Vulnerabilities }} vulnerabilities, {{ len .Information }} informational
{{- range .Vulnerabilities }}
[{{ severityLabel .Severity }}] {{ .Description }}
{{- end }}
{{- range .Information }}
[info] {{ .Description }}
{{- end }}
`,
	"csv": `kind,severity,description
{{- range .Entries }}
{{ .Kind }},{{ .Severity }},{{ escapeCSV .Description }}
{{- end }}
`,
}

// templateData is what templates see.
type templateData struct {
	Generated       string
	Entries         []Entry
	Vulnerabilities []Entry
	Information     []Entry
}

// TemplateSink buffers findings and renders a Go template with Sprig
// functions on Close.
type TemplateSink struct {
	buffer
	w    io.Writer
	tmpl *template.Template
}

var _ Sink = (*TemplateSink)(nil)

// NewTemplateSink parses the template immediately so configuration errors
// surface before the scan starts.
func NewTemplateSink(w io.Writer, cfg TemplateConfig) (*TemplateSink, error) {
	var text string
	switch {
	case cfg.Path != "":
		content, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("output: read template: %w", err)
		}
		text = string(content)
	case cfg.Text != "":
		text = cfg.Text
	case cfg.BuiltIn != "":
		content, ok := builtInTemplates[cfg.BuiltIn]
		if !ok {
			return nil, fmt.Errorf("output: unknown built-in template %q (available: text, csv)", cfg.BuiltIn)
		}
		text = content
	default:
		text = builtInTemplates["text"]
	}

	funcMap := sprig.TxtFuncMap()
	funcMap["escapeCSV"] = escapeCSV
	funcMap["severityLabel"] = ui.SeverityLabel

	tmpl, err := template.New("scanhost").Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("output: parse template: %w", err)
	}
	return &TemplateSink{w: w, tmpl: tmpl}, nil
}

// Close renders all buffered findings.
func (s *TemplateSink) Close() error {
	entries := s.snapshot()
	data := templateData{
		Generated: time.Now().UTC().Format(time.RFC3339),
		Entries:   entries,
	}
	for _, e := range entries {
		if e.Kind == KindVulnerability {
			data.Vulnerabilities = append(data.Vulnerabilities, e)
		} else {
			data.Information = append(data.Information, e)
		}
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("output: execute template: %w", err)
	}
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("output: write template: %w", err)
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
