package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/waftester/scanhost/pkg/finding"
	"github.com/waftester/scanhost/pkg/ui"
)

// ConsoleSink prints one styled line per finding.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
	r  *lipgloss.Renderer
}

var _ Sink = (*ConsoleSink)(nil)

// NewConsoleSink writes to w. Colors are used only on terminals.
func NewConsoleSink(w io.Writer, noColor bool) *ConsoleSink {
	return &ConsoleSink{w: w, r: ui.Renderer(w, noColor)}
}

func (c *ConsoleSink) EmitVulnerability(description string, severity finding.Severity) {
	badge := c.r.NewStyle().Inherit(ui.SeverityStyle(severity)).Render(ui.SeverityLabel(severity))
	c.println(badge + " " + description)
}

func (c *ConsoleSink) EmitInformation(description string) {
	label := c.r.NewStyle().Inherit(ui.InfoLabelStyle).Render(ui.Icon("ℹ", "[i]"))
	c.println(label + " " + description)
}

func (c *ConsoleSink) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

// Close closes the underlying file unless it is stdout or stderr.
func (c *ConsoleSink) Close() error {
	f, ok := c.w.(*os.File)
	if !ok || f == os.Stdout || f == os.Stderr {
		return nil
	}
	return f.Close()
}
