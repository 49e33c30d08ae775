package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pablasso/liftoff/internal/state"
)

func keyPress(t *testing.T, m Model, key tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(key)
	next, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update returned %T", updated)
	}
	return next, cmd
}

func TestModel_CancelWaitsForResult(t *testing.T) {
	cancelled := false
	m := newModel(state.NewStore(), func() { cancelled = true })

	m, cmd := keyPress(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled {
		t.Fatal("cancel was not invoked")
	}
	// Quitting here would report a cancelled run as successful; the model has
	// to stay up until the initializer's result arrives.
	if cmd != nil {
		t.Fatal("model quit before the initializer settled")
	}

	updated, _ := m.Update(doneMsg{err: context.Canceled})
	m = updated.(Model)
	if !m.done {
		t.Error("done flag not set")
	}
	if !errors.Is(m.runErr, context.Canceled) {
		t.Errorf("runErr = %v, want context.Canceled", m.runErr)
	}
}

func TestModel_QuitAfterDone(t *testing.T) {
	m := newModel(state.NewStore(), func() {})

	updated, _ := m.Update(doneMsg{err: nil})
	m = updated.(Model)

	m, cmd := keyPress(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected a quit command once the run settled")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("command produced %T, want tea.QuitMsg", cmd())
	}
	if m.runErr != nil {
		t.Errorf("runErr = %v, want nil", m.runErr)
	}
}
