package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
)

// ErrInterrupted is returned by Run when the user quits the view before the
// work finishes.
var ErrInterrupted = errors.New("interrupted")

// ProgressMsg carries a progress update from the running export or import.
type ProgressMsg types.Progress

// DoneMsg is sent once the work function has returned.
type DoneMsg struct {
	Err error
}

// ProgressModel is the Bubble Tea model of the live progress view.
type ProgressModel struct {
	title       string
	root        string
	spinner     spinner.Model
	bar         progress.Model
	progress    types.Progress
	startTime   time.Time
	width       int
	done        bool
	interrupted bool
	err         error
}

// NewProgressModel creates a progress view for a run over root.
func NewProgressModel(title, root string) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return ProgressModel{
		title:     title,
		root:      root,
		spinner:   s,
		bar:       bar,
		startTime: time.Now(),
		width:     80,
	}
}

// Init starts the spinner.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the progress view.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-20))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.interrupted = true
			return m, tea.Quit
		}
		return m, nil

	case ProgressMsg:
		m.progress = types.Progress(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Interrupted reports whether the user quit before the work finished.
func (m ProgressModel) Interrupted() bool {
	return m.interrupted
}

// Percent returns the completed fraction of the run, 0 until the total is
// known.
func (m ProgressModel) Percent() float64 {
	if m.progress.Total <= 0 {
		if m.done && m.err == nil {
			return 1
		}
		return 0
	}
	return float64(m.progress.Completed) / float64(m.progress.Total)
}

// View renders the progress view.
func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString(mutedTextStyle.Render("  " + m.root))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.done:
		b.WriteString(successTextStyle.Render("Done"))
	default:
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.status()))
	}
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString("\n")
	b.WriteString(mutedTextStyle.Render(fmt.Sprintf("%d/%d files  %s",
		m.progress.Completed, m.progress.Total, time.Since(m.startTime).Round(time.Second))))

	if m.progress.CurrentPath != "" && !m.done {
		b.WriteString("\n")
		b.WriteString(mutedTextStyle.Render(truncatePath(m.progress.CurrentPath, m.width-8)))
	}

	return boxStyle.Render(b.String()) + "\n"
}

// status describes the current phase.
func (m ProgressModel) status() string {
	switch m.progress.Phase {
	case types.PhaseEnumerating:
		return "Scanning directory..."
	case types.PhaseLoading:
		return "Loading manifest..."
	case types.PhaseDispatching:
		return fmt.Sprintf("Found %d files to process.", m.progress.Total)
	case types.PhaseAggregating:
		return "Hashing..."
	case types.PhaseReporting, types.PhaseDone:
		return "Finishing..."
	default:
		return "Starting..."
	}
}

// truncatePath shortens a path from the left to fit within maxLen.
func truncatePath(path string, maxLen int) string {
	if maxLen < 4 || len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}

// Run shows the progress view on out while work runs. work receives a
// callback that forwards progress into the view. Run returns work's error,
// or ErrInterrupted if the user quit first.
func Run(title, root string, out io.Writer, work func(report func(types.Progress)) error) error {
	p := tea.NewProgram(NewProgressModel(title, root), tea.WithOutput(out))

	errCh := make(chan error, 1)
	go func() {
		err := work(func(pr types.Progress) {
			p.Send(ProgressMsg(pr))
		})
		p.Send(DoneMsg{Err: err})
		errCh <- err
	}()

	final, runErr := p.Run()
	if m, ok := final.(ProgressModel); ok && m.Interrupted() {
		return ErrInterrupted
	}
	workErr := <-errCh
	if runErr != nil && workErr == nil {
		return fmt.Errorf("progress view: %w", runErr)
	}
	return workErr
}
