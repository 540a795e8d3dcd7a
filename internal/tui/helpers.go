package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/keepsession/internal/health"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/session"
)

// Run starts the TUI and blocks until it exits
func Run(ctl *session.Controller, monitor *health.Monitor) error {
	logger.Info("Launching TUI")
	p := tea.NewProgram(NewModel(ctl, monitor), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", logger.F("error", err))
		return err
	}
	logger.Info("TUI exited normally")
	return nil
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
