package main

import (
	"fmt"
	"os"
	"strings"
)

// dashboardMode is the --ui setting of the fuzz command.
type dashboardMode string

const (
	dashboardAuto dashboardMode = "auto"
	dashboardOn   dashboardMode = "on"
	dashboardOff  dashboardMode = "off"
)

var dashboardAliases = map[string]dashboardMode{
	"":      dashboardAuto,
	"auto":  dashboardAuto,
	"on":    dashboardOn,
	"true":  dashboardOn,
	"yes":   dashboardOn,
	"off":   dashboardOff,
	"false": dashboardOff,
	"no":    dashboardOff,
}

func parseDashboardMode(value string) (dashboardMode, error) {
	if mode, ok := dashboardAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return mode, nil
	}
	return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// useDashboard decides whether the launcher draws the bubbletea dashboard
// instead of monitor lines. Quiet runs and dumb terminals stay on lines
// unless the dashboard was asked for explicitly.
func useDashboard(mode dashboardMode, quiet bool, stdout *os.File) bool {
	switch mode {
	case dashboardOn:
		return true
	case dashboardOff:
		return false
	}
	if quiet || os.Getenv("TERM") == "dumb" {
		return false
	}
	return stdout != nil && isTerminal(stdout)
}
