package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"gramfuzz/internal/monitor"
	"gramfuzz/internal/ui"
)

// runWithDashboard runs the campaign while a dashboard renders the
// monitor's snapshots. Closing the dashboard stops the campaign.
func runWithDashboard(ctx context.Context, cancel context.CancelFunc, title string, clients int, mon *monitor.Monitor, run func(context.Context) error) error {
	updates := mon.Subscribe()
	outcomeCh := make(chan error, 1)

	go func() {
		err := run(ctx)
		outcomeCh <- err
		mon.Close()
	}()

	model := ui.NewDashboardModel(title, clients, updates)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	cancel()
	err := <-outcomeCh
	if err != nil {
		return err
	}
	return uiErr
}
