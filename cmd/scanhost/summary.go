package main

import (
	"fmt"
	"io"
	"time"

	"github.com/waftester/scanhost/pkg/finding"
	"github.com/waftester/scanhost/pkg/kb"
	"github.com/waftester/scanhost/pkg/plugin"
	"github.com/waftester/scanhost/pkg/ui"
)

func printSummary(w io.Writer, outcomes []plugin.Outcome, store *kb.Store, noColor bool) {
	r := ui.Renderer(w, noColor)
	title := r.NewStyle().Inherit(ui.TitleStyle)
	name := r.NewStyle().Inherit(ui.PluginStyle)
	muted := r.NewStyle().Inherit(ui.BracketStyle)
	bad := r.NewStyle().Inherit(ui.SeverityStyle(finding.High))

	fmt.Fprintln(w)
	fmt.Fprintln(w, title.Render("Scan summary"))
	for _, o := range outcomes {
		status := ui.Icon("✓", "ok")
		detail := ""
		switch {
		case o.Err != nil:
			status = bad.Render(ui.Icon("✗", "FAIL"))
			detail = o.Err.Error()
		case o.Result != nil:
			detail = fmt.Sprintf("%d findings, %d urls", o.Result.Findings, len(o.Result.Discovered))
		default:
			detail = "done"
		}
		fmt.Fprintf(w, "  %s %s %s %s\n",
			status,
			name.Render(o.Plugin),
			muted.Render("("+o.Duration.Round(time.Millisecond).String()+")"),
			detail,
		)
	}
	fmt.Fprintf(w, "  %d findings stored in %d namespaces\n", store.Total(), len(store.Namespaces()))
}
