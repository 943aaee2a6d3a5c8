package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModelRendersResult(t *testing.T) {
	m := model{title: "tasks list", started: time.Now(), cancel: func() {}}
	if !strings.Contains(m.View(), "working") {
		t.Fatalf("expected running view, got %q", m.View())
	}

	next, cmd := m.Update(actionMsg{details: []string{"[ ] 1  buy milk"}})
	if cmd == nil {
		t.Fatal("expected quit command after the action finishes")
	}
	view := next.(model).View()
	if !strings.Contains(view, "OK") || !strings.Contains(view, "buy milk") {
		t.Fatalf("unexpected view %q", view)
	}

	next, _ = m.Update(actionMsg{err: errors.New("not logged in")})
	if view := next.(model).View(); !strings.Contains(view, "FAILED") || !strings.Contains(view, "not logged in") {
		t.Fatalf("unexpected failure view %q", view)
	}
}

func TestModelCtrlCCancels(t *testing.T) {
	cancelled := false
	m := model{title: "chat", started: time.Now(), cancel: func() { cancelled = true }}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled || !next.(model).done || next.(model).err == nil {
		t.Fatalf("expected cancelled model, got %+v", next)
	}
}

func TestModelTickAdvancesSpinner(t *testing.T) {
	m := model{title: "login", started: time.Now(), cancel: func() {}}
	next, cmd := m.Update(tickMsg(time.Now()))
	if next.(model).frame != 1 || cmd == nil {
		t.Fatal("expected spinner to advance and schedule another tick")
	}
}
