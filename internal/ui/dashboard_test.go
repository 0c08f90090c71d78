package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"gramfuzz/internal/monitor"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"0123456789abcdef", 8, "01234..."},
		{"abcdef", 2, "ab"},
		{"anything", 0, "anything"},
		{"abcdefghij", 4, "a..."},
		{"числа-чётные", 9, "числа-..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.width)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
		if tt.width > 0 && runewidth.StringWidth(tt.in) > tt.width && runewidth.StringWidth(got) != tt.width {
			t.Errorf("truncate(%q, %d) is %d columns wide", tt.in, tt.width, runewidth.StringWidth(got))
		}
	}
}

func TestDashboardRendersSnapshot(t *testing.T) {
	updates := make(chan monitor.Snapshot, 1)
	model := NewDashboardModel("stage campaign", 2, updates)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := monitor.Snapshot{
		Start: start,
		Now:   start.Add(2 * time.Second),
		Clients: []monitor.ClientStats{
			{ID: "client-a", Executions: 1500, Corpus: 3, Objectives: 1, Done: true},
			{ID: "client-b", Executions: 20},
		},
		Executions: 1520,
		Objectives: 1,
		Finished:   1,
	}
	model, _ = model.Update(snapshotMsg(snap))
	view := model.View()
	for _, want := range []string{"stage campaign", "client-a", "1,500", "done", "fuzzing", "clients 1/2 finished"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDashboardQuitsWhenUpdatesClose(t *testing.T) {
	updates := make(chan monitor.Snapshot)
	close(updates)
	m := NewDashboardModel("x", 1, updates).(*dashboardModel)
	if _, ok := m.listenForSnapshot()().(doneMsg); !ok {
		t.Fatal("closed updates should produce doneMsg")
	}
	_, cmd := m.Update(doneMsg{})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
	if !strings.Contains(m.View(), "done: x") {
		t.Fatalf("view after done:\n%s", m.View())
	}
}
