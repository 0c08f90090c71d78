package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"gramfuzz/internal/monitor"
)

type dashboardModel struct {
	title   string
	clients int
	updates <-chan monitor.Snapshot
	spinner spinner.Model
	prog    progress.Model
	snap    monitor.Snapshot
	width   int
	done    bool
}

type snapshotMsg monitor.Snapshot
type doneMsg struct{}

// NewDashboardModel returns a Bubble Tea model that renders campaign
// statistics for the expected number of clients until updates is closed.
func NewDashboardModel(title string, clients int, updates <-chan monitor.Snapshot) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &dashboardModel{
		title:   title,
		clients: clients,
		updates: updates,
		spinner: sp,
		prog:    prog,
		width:   80,
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForSnapshot())
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = monitor.Snapshot(msg)
		return m, tea.Batch(m.setProgress(), m.listenForSnapshot())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		// Ctrl+C закрывает экран, кампанию останавливает вызывающий код.
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (run time %s, %s exec/sec)",
		m.title, monitor.FormatDuration(m.snap.RunTime()), monitor.FormatRate(m.snap.Rate()))
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 10
	idWidth := m.width - statusWidth - 56
	if idWidth < 8 {
		idWidth = 8
	}
	for _, c := range m.snap.Clients {
		status := "fuzzing"
		if c.Done {
			status = "done"
		}
		fmt.Fprintf(&b, "  %s %-*s  execs %12s  corpus %6s  objectives %s\n",
			styleStatus(status).Render(fmt.Sprintf("%*s", statusWidth, status)),
			idWidth, truncate(c.ID, idWidth),
			humanize.Comma(int64(c.Executions)),
			humanize.Comma(int64(c.Corpus)),
			styleObjectives(c.Objectives).Render(humanize.Comma(int64(c.Objectives))))
	}
	fmt.Fprintf(&b, "\n  clients %d/%d finished, %s objectives\n", m.snap.Finished, m.clients,
		humanize.Comma(int64(m.snap.Objectives)))

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *dashboardModel) listenForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.updates
		if !ok {
			return doneMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m *dashboardModel) setProgress() tea.Cmd {
	if m.clients <= 0 {
		return nil
	}
	return m.prog.SetPercent(float64(m.snap.Finished) / float64(m.clients))
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "fuzzing":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func styleObjectives(n int) lipgloss.Style {
	if n > 0 {
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	}
	return lipgloss.NewStyle()
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
