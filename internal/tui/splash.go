// Package tui renders the startup splash screen: an animated view over the
// state store while the initializer runs.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pablasso/liftoff/internal/executor"
	"github.com/pablasso/liftoff/internal/state"
	"github.com/pablasso/liftoff/internal/task"
	"github.com/pablasso/liftoff/internal/tui/components"
	"github.com/pablasso/liftoff/internal/tui/styles"
)

const (
	pollInterval = 80 * time.Millisecond
	exitDelay    = 700 * time.Millisecond
	barWidth     = 30
)

// tickMsg drives the periodic store poll.
type tickMsg time.Time

// doneMsg carries the initializer's result.
type doneMsg struct{ err error }

// quitMsg closes the program after the final frame has been shown.
type quitMsg struct{}

// Model is the splash screen model. It reads the store snapshot directly on
// every tick instead of subscribing listeners, so a stale frame can never
// deadlock the initializer.
type Model struct {
	store   *state.Store
	cancel  context.CancelFunc
	spinner spinner.Model
	snap    state.Snapshot
	done    bool
	runErr  error
	width   int
}

// Run executes the initializer underneath the splash screen and returns the
// initialization error, if any.
func Run(ctx context.Context, in *executor.Initializer) error {
	store := in.Store()
	if store == nil {
		return fmt.Errorf("tui: initializer has no observable store")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(store, cancel), tea.WithAltScreen())
	go func() {
		p.Send(doneMsg{err: in.Run(ctx)})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.runErr
	}
	return nil
}

func newModel(store *state.Store, cancel context.CancelFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		store:   store,
		cancel:  cancel,
		spinner: sp,
		snap:    store.Snapshot(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.cancel()
			if m.done {
				return m, tea.Quit
			}
			// Stay up until doneMsg arrives so the run's error is reported.
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.snap = m.store.Snapshot()
		if m.done {
			return m, nil
		}
		return m, tick()

	case doneMsg:
		m.done = true
		m.runErr = msg.err
		m.snap = m.store.Snapshot()
		return m, tea.Tick(exitDelay, func(time.Time) tea.Msg {
			return quitMsg{}
		})

	case quitMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(styles.TitleStyle.Render("Liftoff"))
	sb.WriteString("\n")
	sb.WriteString(m.statusLine())
	sb.WriteString("\n\n")
	sb.WriteString(components.NewProgressBar(m.snap.OverallProgress, barWidth).View())
	sb.WriteString("\n\n")

	for _, st := range task.Stages() {
		sb.WriteString(m.stageLine(st))
		sb.WriteString("\n")
	}

	if m.snap.Failed {
		if first := m.snap.FirstError(); first != nil {
			sb.WriteString("\n")
			sb.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("%s: %s", first.TaskName, first.Message)))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(styles.SubtleStyle.Render("q to cancel"))

	return styles.BoxStyle.Render(sb.String())
}

func (m Model) statusLine() string {
	switch {
	case m.snap.Failed:
		return styles.ErrorStyle.Render("✗ Startup failed")
	case m.snap.Initialized:
		took := m.snap.EndedAt.Sub(m.snap.StartedAt).Round(time.Millisecond)
		return styles.SuccessStyle.Render(fmt.Sprintf("✓ Ready in %s", took))
	default:
		return fmt.Sprintf("%s Starting: %s", m.spinner.View(), m.snap.CurrentStage)
	}
}

func (m Model) stageLine(st task.Stage) string {
	ss := m.snap.Stages[st]
	label := st.String()
	switch ss.Status {
	case state.StatusCompleted:
		return styles.SuccessStyle.Render(fmt.Sprintf("  ✓ %s", label))
	case state.StatusInProgress:
		return styles.ActiveStyle.Render(fmt.Sprintf("  ● %s (%d/%d)", label, ss.CompletedCount, ss.TotalCount))
	default:
		return styles.SubtleStyle.Render(fmt.Sprintf("  ○ %s", label))
	}
}
