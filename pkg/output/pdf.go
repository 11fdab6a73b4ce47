package output

import (
	"fmt"
	"io"
	"time"

	gofpdf "github.com/go-pdf/fpdf"
	"github.com/waftester/scanhost/pkg/defaults"
	"github.com/waftester/scanhost/pkg/finding"
	"github.com/waftester/scanhost/pkg/ui"
)

// severityRGB mirrors the console palette.
var severityRGB = map[finding.Severity][3]int{
	finding.Critical: {220, 38, 38},
	finding.High:     {234, 88, 12},
	finding.Medium:   {202, 138, 4},
	finding.Low:      {22, 163, 74},
	finding.Info:     {37, 99, 235},
}

// PDFSink buffers findings and writes a PDF report on Close.
type PDFSink struct {
	buffer
	w     io.Writer
	title string
}

var _ Sink = (*PDFSink)(nil)

func NewPDFSink(w io.Writer, title string) *PDFSink {
	if title == "" {
		title = defaults.ToolName + " report"
	}
	return &PDFSink{w: w, title: title}
}

// Close renders the report.
func (s *PDFSink) Close() error {
	entries := s.snapshot()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(s.title, true)
	pdf.SetCreator(defaults.ToolName+" "+defaults.Version, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 10, s.title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, time.Now().UTC().Format(time.RFC1123), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(30, 8, "Severity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(0, 8, "Finding", "1", 1, "L", true, 0, "")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "", 9)
	for _, e := range entries {
		rgb, ok := severityRGB[e.Severity]
		if !ok {
			rgb = [3]int{107, 114, 128}
		}
		pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
		pdf.CellFormat(30, 7, ui.SeverityLabel(e.Severity), "1", 0, "C", false, 0, "")
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 7, tr(e.Description), "1", "L", false)
	}
	if len(entries) == 0 {
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(0, 7, "No findings.", "1", 1, "L", false, 0, "")
	}

	if err := pdf.Output(s.w); err != nil {
		return fmt.Errorf("output: render pdf: %w", err)
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
