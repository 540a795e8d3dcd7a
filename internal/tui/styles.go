package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/keepsession/internal/health"
)

// Color palette based on TUI design
var (
	// Status colors
	StatusOK    = lipgloss.Color("#95E1A3") // Green
	StatusWarn  = lipgloss.Color("#FFE66D") // Yellow
	StatusError = lipgloss.Color("#FF6B6B") // Red

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Secondary = lipgloss.Color("#6C757D")
	Surface   = lipgloss.Color("#16213e")
	Text      = lipgloss.Color("#FFFFFF")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
)

// Styles
var (
	// Header
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Padding(0, 1)

	// Card around forms and the profile
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	LabelStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Width(10)

	ValueStyle = lipgloss.NewStyle().
			Foreground(Text)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(StatusError).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(StatusOK)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Primary)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// healthStyle colors a health score
func healthStyle(s health.Score) lipgloss.Style {
	switch s {
	case health.Critical:
		return lipgloss.NewStyle().Foreground(StatusError).Bold(true)
	case health.Slow:
		return lipgloss.NewStyle().Foreground(StatusWarn)
	default:
		return lipgloss.NewStyle().Foreground(StatusOK)
	}
}
