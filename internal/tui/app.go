// Package tui provides the terminal user interface for apiflow runs.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Task display stages.
const (
	StagePending   = "pending"
	StageSelecting = "selecting"
	StagePreparing = "preparing"
	StageExecuting = "executing"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// RunEventMsg wraps an orchestrator event for the TUI.
type RunEventMsg struct {
	Type        string
	TaskID      int
	Description string
	Message     string
	Err         string
	Timestamp   time.Time
}

// RunDoneMsg signals that the run has finished.
type RunDoneMsg struct {
	Success bool
	Summary string
	Message string
}

// LogEntry represents a log line displayed below the task board.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// taskRow holds the display state of one task.
type taskRow struct {
	ID          int
	Description string
	Stage       string
	Detail      string
}

// App is the main bubbletea model for the apiflow TUI.
type App struct {
	// query is the natural language request being processed.
	query string
	// tasks is the task board in decomposition order.
	tasks []*taskRow
	// logs is the list of log entries.
	logs []LogEntry
	// spin animates next to the task currently in flight.
	spin spinner.Model
	// width is the terminal width.
	width int
	// height is the terminal height.
	height int
	// quitting indicates the app is shutting down.
	quitting bool
	// done indicates the run has finished.
	done bool
	// success indicates whether the run produced a summary.
	success bool
	// summary holds the final answer.
	summary string
	// message holds the final status line.
	message string
}

// New creates a new App for the given query.
func New(query string) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = activeStyle
	return &App{
		query: query,
		tasks: make([]*taskRow, 0),
		logs:  make([]LogEntry, 0),
		spin:  s,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.spin.Tick
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case RunEventMsg:
		a.handleRunEvent(msg)

	case RunDoneMsg:
		a.done = true
		a.success = msg.Success
		a.summary = msg.Summary
		a.message = msg.Message
	}

	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}

	return fmt.Sprintf("%s\n\n%s\n%s\n%s",
		a.viewHeader(), a.viewTasks(), a.viewLogs(), a.viewFooter())
}

// viewHeader renders the title and the query being processed.
func (a *App) viewHeader() string {
	title := titleStyle.Render("apiflow")
	query := subtitleStyle.Render(a.query)
	return lipgloss.JoinVertical(lipgloss.Left, title, query)
}

// viewTasks renders the task board.
func (a *App) viewTasks() string {
	if len(a.tasks) == 0 {
		return pendingStyle.Render("  Decomposing request into tasks...")
	}

	var b strings.Builder
	for _, task := range a.tasks {
		glyph, style := a.stageGlyph(task.Stage)
		line := fmt.Sprintf("  %s Task %d: %s", glyph, task.ID, task.Description)
		b.WriteString(style.Render(line))
		b.WriteString("\n")
		if task.Detail != "" {
			b.WriteString(detailStyle.Render(task.Detail))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// stageGlyph returns the marker and style for a task stage.
func (a *App) stageGlyph(stage string) (string, lipgloss.Style) {
	switch stage {
	case StageCompleted:
		return "✓", completedStyle
	case StageFailed:
		return "✗", failedStyle
	case StageSelecting, StagePreparing, StageExecuting:
		return a.spin.View(), activeStyle
	default:
		return "·", pendingStyle
	}
}

// viewLogs renders the most recent log entries.
func (a *App) viewLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	start := 0
	if len(a.logs) > 8 {
		start = len(a.logs) - 8
	}

	var b strings.Builder
	for _, entry := range a.logs[start:] {
		ts := entry.Timestamp.Format("15:04:05")
		b.WriteString(pendingStyle.Render(fmt.Sprintf("  %s [%s] %s", ts, entry.Level, entry.Message)))
		b.WriteString("\n")
	}
	return b.String()
}

// viewFooter renders the summary box once done, help text otherwise.
func (a *App) viewFooter() string {
	if a.done {
		var status string
		if a.success {
			status = completedStyle.Render("✓ " + a.message)
		} else {
			status = failedStyle.Render("✗ " + a.message)
		}
		parts := []string{status}
		if a.summary != "" {
			parts = append(parts, summaryStyle.Render(a.summary))
		}
		parts = append(parts, footerStyle.Render("Press q to exit"))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}
	return footerStyle.Render("Press q to quit")
}

// handleRunEvent updates the task board from an orchestrator event.
func (a *App) handleRunEvent(msg RunEventMsg) {
	level := "INFO"
	if msg.Err != "" {
		level = "ERROR"
	}
	logLine := msg.Message
	if logLine == "" {
		logLine = msg.Err
	}
	if logLine != "" {
		a.logs = append(a.logs, LogEntry{
			Timestamp: msg.Timestamp,
			Level:     level,
			Message:   fmt.Sprintf("%s: %s", msg.Type, logLine),
		})
	}

	switch msg.Type {
	case "task_started":
		task := a.findOrCreateTask(msg.TaskID, msg.Description)
		task.Stage = StageSelecting

	case "spec_selected":
		task := a.findOrCreateTask(msg.TaskID, msg.Description)
		task.Stage = StagePreparing
		task.Detail = "spec: " + msg.Message

	case "call_prepared":
		task := a.findOrCreateTask(msg.TaskID, msg.Description)
		task.Stage = StageExecuting
		task.Detail = msg.Message

	case "task_completed":
		task := a.findOrCreateTask(msg.TaskID, msg.Description)
		task.Stage = StageCompleted

	case "task_failed":
		task := a.findOrCreateTask(msg.TaskID, msg.Description)
		task.Stage = StageFailed
		task.Detail = msg.Err
	}
}

// findOrCreateTask finds a task row by id or appends a new one.
func (a *App) findOrCreateTask(id int, description string) *taskRow {
	for _, task := range a.tasks {
		if task.ID == id {
			if description != "" {
				task.Description = description
			}
			return task
		}
	}
	task := &taskRow{
		ID:          id,
		Description: description,
		Stage:       StagePending,
	}
	a.tasks = append(a.tasks, task)
	return task
}

// NewProgram creates a Bubbletea program that can receive messages
// via Send().
func NewProgram(query string) (*tea.Program, *App) {
	app := New(query)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
