package cli

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/mgrunwald/docdex/internal/ingest"
)

const refreshInterval = 250 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers re-reading the session state.
type tickMsg time.Time

// batchModel is the bubbletea model rendering one ingestion batch. It only
// reads the session; all writes come from the orchestrator goroutine.
type batchModel struct {
	session  *ingest.BatchSession
	progress progress.Model
	theme    Theme
	quitting bool
}

func newBatchModel(session *ingest.BatchSession) batchModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(30),
	)

	return batchModel{
		session:  session,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start the refresh ticker).
func (m batchModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		if m.session.Finished() {
			return m, tea.Quit
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the batch display.
func (m batchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds one line per file, in display order.
func (m batchModel) renderContent() string {
	tasks := m.session.Tasks()
	if tasks == nil {
		return ""
	}

	var b strings.Builder
	for _, task := range tasks {
		b.WriteString(m.renderTask(task))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(m.theme.hintStyle().Render("Press Ctrl+C to detach; the batch keeps running"))
	b.WriteByte('\n')
	return b.String()
}

func (m batchModel) renderTask(task ingest.FileTask) string {
	var tag string
	switch task.Status {
	case ingest.StatusDone:
		tag = m.theme.completedStyle().Render("✓")
	case ingest.StatusError:
		tag = m.theme.errorStyle().Render("✗")
	case ingest.StatusWaiting:
		tag = m.theme.hintStyle().Render("·")
	default:
		tag = m.theme.statusStyle().Render("•")
	}

	bar := m.progress.ViewAs(float64(task.Progress) / 100)
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", task.Status))

	message := task.Message
	if task.Status == ingest.StatusError {
		message = m.theme.errorStyle().Render(message)
	}

	return fmt.Sprintf("%s %-30s %s %s %s", tag, task.FileName, bar, status, message)
}

// tickCmd returns a command that sends a tick after the refresh interval.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runBatchUI runs the interactive progress view until the batch finishes
// or the user detaches. It reports whether the user detached early.
func runBatchUI(session *ingest.BatchSession) (detached bool, err error) {
	model := newBatchModel(session)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(batchModel); ok && m.quitting {
		return true, nil
	}
	return false, nil
}
