// Package output renders CLI messages and tables with lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/fenceorders/pkg/migration"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	primaryStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
)

// Printer writes styled lines to w. In JSON mode messages are suppressed
// and only JSON documents are written.
type Printer struct {
	w    io.Writer
	json bool
}

func New(w io.Writer, jsonMode bool) *Printer {
	return &Printer{w: w, json: jsonMode}
}

func (p *Printer) line(icon string, format string, args ...any) {
	if p.json {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", icon, fmt.Sprintf(format, args...))
}

func (p *Printer) Success(format string, args ...any) {
	p.line(successStyle.Render("✓"), format, args...)
}

func (p *Printer) Warning(format string, args ...any) {
	p.line(warningStyle.Render("⚠"), format, args...)
}

func (p *Printer) Error(format string, args ...any) {
	p.line(errorStyle.Render("✗"), format, args...)
}

func (p *Printer) Info(format string, args ...any) {
	p.line(infoStyle.Render("ℹ"), format, args...)
}

// Section prints a title underlined to its width.
func (p *Printer) Section(title string) {
	if p.json {
		return
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, primaryStyle.Render(title))
	fmt.Fprintln(p.w, mutedStyle.Render(strings.Repeat("═", lipgloss.Width(title))))
}

// JSON writes v as indented JSON regardless of mode.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// StatusIcon returns a colored icon for a migration status.
func StatusIcon(status migration.MigrationStatus) string {
	switch status {
	case migration.StatusApplied:
		return successStyle.Render("✓")
	case migration.StatusPending:
		return warningStyle.Render("○")
	case migration.StatusFailed:
		return errorStyle.Render("✗")
	default:
		return mutedStyle.Render("•")
	}
}

// Summary counts records per status.
type Summary struct {
	Applied int `json:"applied"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

func Summarize(records []migration.MigrationRecord) Summary {
	var s Summary
	for _, r := range records {
		switch r.Status {
		case migration.StatusApplied:
			s.Applied++
		case migration.StatusPending:
			s.Pending++
		case migration.StatusFailed:
			s.Failed++
		}
	}
	return s
}

// MigrationStatus prints records as a table followed by a summary line,
// or as one JSON document in JSON mode.
func (p *Printer) MigrationStatus(records []migration.MigrationRecord) error {
	summary := Summarize(records)
	if p.json {
		return p.JSON(struct {
			Migrations []migration.MigrationRecord `json:"migrations"`
			Summary    Summary                     `json:"summary"`
		}{records, summary})
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	_, _ = fmt.Fprintln(tw, "-------\t----\t------\t----------")
	for _, r := range records {
		appliedAt := "N/A"
		if r.AppliedAt != nil {
			appliedAt = r.AppliedAt.Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\n", r.Version, r.Name, StatusIcon(r.Status), r.Status, appliedAt)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(p.w, "\nSummary: %d applied, %d pending", summary.Applied, summary.Pending)
	if summary.Failed > 0 {
		fmt.Fprintf(p.w, ", %d failed", summary.Failed)
	}
	fmt.Fprintln(p.w)
	return nil
}
