package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/fenceorders/pkg/migration"
)

// Action is the direction of an interactive run.
type Action string

const (
	ActionUp   Action = "up"
	ActionDown Action = "down"
)

// Mode is the current screen of the migration UI.
type Mode int

const (
	ModeLoading Mode = iota
	ModeList
	ModeConfirm
	ModeExecuting
	ModeComplete
	ModeError
)

var errNothingToRun = errors.New("nothing to run from the selected migration")

// Plan returns the migrations to run when the user picks records[selected].
// Going up applies every unapplied migration up to and including the
// selection, oldest first. Going down rolls back every applied migration
// from the newest down to the selection.
func Plan(action Action, records []migration.MigrationRecord, all []migration.Migration, selected int) ([]migration.Migration, error) {
	if selected < 0 || selected >= len(records) {
		return nil, errNothingToRun
	}
	byVersion := make(map[string]migration.Migration, len(all))
	for _, m := range all {
		byVersion[m.Version] = m
	}

	var plan []migration.Migration
	switch action {
	case ActionUp:
		if records[selected].Status == migration.StatusApplied {
			return nil, errNothingToRun
		}
		for _, r := range records[:selected+1] {
			if r.Status == migration.StatusApplied {
				continue
			}
			if m, ok := byVersion[r.Version]; ok {
				plan = append(plan, m)
			}
		}
	case ActionDown:
		if records[selected].Status != migration.StatusApplied {
			return nil, errNothingToRun
		}
		for i := len(records) - 1; i >= selected; i-- {
			if records[i].Status != migration.StatusApplied {
				continue
			}
			m, ok := byVersion[records[i].Version]
			if !ok {
				return nil, fmt.Errorf("migration %s is applied but has no file", records[i].Version)
			}
			plan = append(plan, m)
		}
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
	if len(plan) == 0 {
		return nil, errNothingToRun
	}
	return plan, nil
}

// MigrateModel is the Bubbletea model for interactive migrations. The
// executor and its database are owned by the caller.
type MigrateModel struct {
	ctx        context.Context
	mode       Mode
	action     Action
	executor   *migration.Executor
	migrations []migration.Migration
	records    []migration.MigrationRecord
	plan       []migration.Migration

	list         list.Model
	confirmation Confirmation
	progress     Progress
	logs         LogView
	err          error
	width        int
	height       int
}

func NewMigrateModel(ctx context.Context, action Action, executor *migration.Executor, migrations []migration.Migration) MigrateModel {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.Title = "Migrations (" + string(action) + ")"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle

	return MigrateModel{
		ctx:        ctx,
		mode:       ModeLoading,
		action:     action,
		executor:   executor,
		migrations: migrations,
		list:       l,
		logs:       NewLogView(10),
	}
}

type statusLoadedMsg struct {
	records []migration.MigrationRecord
}

type stepDoneMsg struct {
	version string
	err     error
}

type errorMsg struct {
	err error
}

func (m MigrateModel) loadStatus() tea.Msg {
	records, err := m.executor.Status(m.ctx, m.migrations)
	if err != nil {
		return errorMsg{err: fmt.Errorf("load migration status: %w", err)}
	}
	return statusLoadedMsg{records: records}
}

func (m MigrateModel) runStep(mig migration.Migration) tea.Cmd {
	return func() tea.Msg {
		var err error
		if m.action == ActionUp {
			err = m.executor.Apply(m.ctx, mig)
		} else {
			err = m.executor.Rollback(m.ctx, mig)
		}
		return stepDoneMsg{version: mig.Version, err: err}
	}
}

func (m MigrateModel) Init() tea.Cmd {
	return m.loadStatus
}

func (m MigrateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case statusLoadedMsg:
		m.records = msg.records
		items := make([]list.Item, len(msg.records))
		for i, r := range msg.records {
			items[i] = MigrationItem{Record: r}
		}
		m.list.SetItems(items)
		m.mode = ModeList
		return m, nil

	case stepDoneMsg:
		if msg.err != nil {
			m.mode = ModeError
			m.err = msg.err
			m.logs.Add(dangerStyle.Render("✗ " + msg.version + ": " + msg.err.Error()))
			return m, nil
		}
		m.logs.Add(successStyle.Render("✓ " + msg.version))
		m.progress.Current++
		if m.progress.Current >= m.progress.Total {
			m.mode = ModeComplete
			return m, nil
		}
		next := m.plan[m.progress.Current]
		m.progress.Message = fmt.Sprintf("%s %s - %s", m.action, next.Version, next.Name)
		return m, m.runStep(next)

	case spinner.TickMsg:
		if m.mode != ModeExecuting {
			return m, nil
		}
		var cmd tea.Cmd
		m.progress.Spinner, cmd = m.progress.Spinner.Update(msg)
		return m, cmd

	case errorMsg:
		m.mode = ModeError
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	if m.mode == ModeList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m MigrateModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeList:
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "enter", " ":
			plan, err := Plan(m.action, m.records, m.migrations, m.list.Index())
			if err != nil {
				return m, nil
			}
			m.plan = plan
			versions := make([]string, len(plan))
			for i, p := range plan {
				versions[i] = p.Version + " - " + p.Name
			}
			m.confirmation = NewConfirmation(
				"Confirm "+strings.ToUpper(string(m.action)),
				fmt.Sprintf("Run %s on %d migration(s)?\n%s", m.action, len(plan), strings.Join(versions, "\n")),
			)
			m.mode = ModeConfirm
			return m, nil
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case ModeConfirm:
		if msg.String() == "esc" || msg.String() == "q" {
			m.mode = ModeList
			return m, nil
		}
		m.confirmation.Update(msg)
		if !m.confirmation.Answered {
			return m, nil
		}
		if !m.confirmation.YesSelected {
			m.mode = ModeList
			return m, nil
		}
		m.mode = ModeExecuting
		m.progress = NewProgress(len(m.plan))
		first := m.plan[0]
		m.progress.Message = fmt.Sprintf("%s %s - %s", m.action, first.Version, first.Name)
		return m, tea.Batch(m.progress.Spinner.Tick, m.runStep(first))

	case ModeComplete, ModeError:
		switch msg.String() {
		case "q", "enter", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m MigrateModel) centered(s string) string {
	if m.width == 0 || m.height == 0 {
		return s
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

func (m MigrateModel) View() string {
	switch m.mode {
	case ModeLoading:
		return mutedStyle.Render("Loading migration status...")
	case ModeList:
		help := helpStyle.Render(
			FormatKey("↑/↓", "navigate") + " • " +
				FormatKey("enter", string(m.action)+" to here") + " • " +
				FormatKey("q", "quit"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), help)
	case ModeConfirm:
		return m.centered(m.confirmation.View())
	case ModeExecuting:
		return m.centered(lipgloss.JoinVertical(lipgloss.Left, m.progress.View(), "", m.logs.View()))
	case ModeComplete:
		return m.centered(boxStyle.Render(
			titleStyle.Render("Migrations complete") + "\n\n" +
				successStyle.Render(fmt.Sprintf("%d migration(s) %s", m.progress.Total, pastTense(m.action))) + "\n\n" +
				helpStyle.Render(FormatKey("enter/q", "exit")),
		))
	case ModeError:
		return m.centered(boxStyle.Render(
			titleStyle.Render("Migration failed") + "\n\n" +
				dangerStyle.Render(m.err.Error()) + "\n\n" +
				m.logs.View() + "\n" +
				helpStyle.Render(FormatKey("enter/q", "exit")),
		))
	}
	return ""
}

// Err reports the failure that ended the session, if any.
func (m MigrateModel) Err() error {
	return m.err
}

func pastTense(a Action) string {
	if a == ActionUp {
		return "applied"
	}
	return "rolled back"
}

// Run starts the interactive migration UI and returns the migration error
// that ended it, if any.
func Run(ctx context.Context, action Action, executor *migration.Executor, migrations []migration.Migration) error {
	final, err := tea.NewProgram(NewMigrateModel(ctx, action, executor, migrations), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if mm, ok := final.(MigrateModel); ok {
		return mm.Err()
	}
	return nil
}
