package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/fenceorders/pkg/migration"
)

// Confirmation is a yes/no dialog. Answered and Yes are set once the user
// presses enter.
type Confirmation struct {
	Title       string
	Message     string
	YesSelected bool
	Answered    bool
}

func NewConfirmation(title, message string) Confirmation {
	return Confirmation{Title: title, Message: message}
}

func (d *Confirmation) Update(msg tea.KeyMsg) {
	switch msg.String() {
	case "left", "h", "y":
		d.YesSelected = true
	case "right", "l", "n":
		d.YesSelected = false
	case "enter":
		d.Answered = true
	}
}

func (d Confirmation) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")

	yes, no := inactiveButtonStyle.Render("Yes"), activeButtonStyle.Render("No")
	if d.YesSelected {
		yes, no = activeButtonStyle.Render("Yes"), inactiveButtonStyle.Render("No")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, yes, "  ", no))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(FormatKey("←/→", "choose") + " • " + FormatKey("enter", "confirm") + " • " + FormatKey("esc", "cancel")))
	return boxStyle.Render(b.String())
}

// MigrationItem is one row of the migration list.
type MigrationItem struct {
	Record migration.MigrationRecord
}

func (i MigrationItem) FilterValue() string { return i.Record.Name }

func (i MigrationItem) Title() string {
	return fmt.Sprintf("%s  %s - %s", FormatStatus(i.Record.Status), i.Record.Version, i.Record.Name)
}

func (i MigrationItem) Description() string {
	switch {
	case i.Record.AppliedAt != nil:
		return mutedStyle.Render("Applied " + i.Record.AppliedAt.Format("2006-01-02 15:04:05"))
	case i.Record.Error != nil:
		return dangerStyle.Render(*i.Record.Error)
	default:
		return mutedStyle.Render("Not applied")
	}
}

type itemDelegate struct{}

func (itemDelegate) Height() int                             { return 2 }
func (itemDelegate) Spacing() int                            { return 1 }
func (itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(MigrationItem)
	if !ok {
		return
	}
	if index == m.Index() {
		_, _ = fmt.Fprint(w, selectedItemStyle.Render("▸ "+i.Title()+"\n  "+i.Description()))
		return
	}
	_, _ = fmt.Fprint(w, unselectedItemStyle.Render("  "+i.Title()+"\n  "+i.Description()))
}

// Progress shows a spinner, the current step and a bar.
type Progress struct {
	Spinner spinner.Model
	Current int
	Total   int
	Message string
}

func NewProgress(total int) Progress {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = infoStyle
	return Progress{Spinner: s, Total: total}
}

func (p Progress) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Migration Progress"))
	b.WriteString("\n\n")
	if p.Message != "" {
		b.WriteString(p.Spinner.View() + " " + infoStyle.Render(p.Message))
		b.WriteString("\n\n")
	}
	b.WriteString(FormatProgressBar(p.Current, p.Total, 40))
	return boxStyle.Render(b.String())
}

// LogView keeps the last MaxLen entries.
type LogView struct {
	Logs   []string
	MaxLen int
}

func NewLogView(maxLen int) LogView {
	return LogView{MaxLen: maxLen}
}

func (l *LogView) Add(entry string) {
	l.Logs = append(l.Logs, entry)
	if len(l.Logs) > l.MaxLen {
		l.Logs = l.Logs[len(l.Logs)-l.MaxLen:]
	}
}

func (l LogView) View() string {
	if len(l.Logs) == 0 {
		return mutedStyle.Render("No logs")
	}
	var b strings.Builder
	for _, entry := range l.Logs {
		b.WriteString(mutedStyle.Render("• "))
		b.WriteString(entry)
		b.WriteString("\n")
	}
	return boxStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}
