package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/waftester/scanhost/pkg/finding"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Color palette
var (
	Primary   = lipgloss.Color("#7D56F4")
	Secondary = lipgloss.Color("#00D4AA")

	// Severity colors (matching OWASP/Nuclei standards)
	Critical = lipgloss.Color("#FF0000")
	High     = lipgloss.Color("#FF6B6B")
	Medium   = lipgloss.Color("#FFD93D")
	Low      = lipgloss.Color("#6BCB77")
	Info     = lipgloss.Color("#4D96FF")

	Muted = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	// Plugin name in brackets before each finding
	PluginStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	InfoLabelStyle = lipgloss.NewStyle().
			Foreground(Info).
			Bold(true)

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)
)

var titleCase = cases.Title(language.English)

// SeverityStyle returns the badge style for a severity level.
func SeverityStyle(sev finding.Severity) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch sev {
	case finding.Critical:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(Critical)
	case finding.High:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(High)
	case finding.Medium:
		return base.Foreground(lipgloss.Color("#000000")).Background(Medium)
	case finding.Low:
		return base.Foreground(lipgloss.Color("#000000")).Background(Low)
	case finding.Info:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(Info)
	default:
		return base.Foreground(Muted)
	}
}

// SeverityLabel returns the display name of a severity, e.g. "High".
func SeverityLabel(sev finding.Severity) string {
	if sev == "" {
		return "Information"
	}
	return titleCase.String(string(sev))
}

// SeverityBadge renders the styled severity label.
func SeverityBadge(sev finding.Severity) string {
	return SeverityStyle(sev).Render(SeverityLabel(sev))
}
