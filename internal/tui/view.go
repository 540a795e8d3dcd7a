package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/keepsession/internal/model"
)

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content string
	switch m.screen {
	case ScreenChecking:
		content = m.spinner.View() + " Checking session..."
	case ScreenLogin, ScreenSignup:
		content = m.renderForm()
	case ScreenProfile:
		content = m.renderProfile()
	case ScreenEditName:
		content = m.renderEdit()
	}

	header := HeaderStyle.Render("KeepSession")
	body := lipgloss.Place(
		m.width, max(m.height-4, 0),
		lipgloss.Center, lipgloss.Center,
		content,
		lipgloss.WithWhitespaceChars(" "),
	)

	// Combine with status bar
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusBar())
}

func (m Model) renderForm() string {
	title := "Sign in"
	if m.screen == ScreenSignup {
		title = "Create account"
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(title))
	b.WriteString("\n\n")
	for i := 0; i < m.fieldCount(); i++ {
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.login.Loading:
		b.WriteString(m.spinner.View() + " " + m.login.Status)
	case m.login.Error != "":
		b.WriteString(ErrorStyle.Render(m.login.Error))
	case m.login.Status != "":
		b.WriteString(SuccessStyle.Render(m.login.Status))
	}
	b.WriteString("\n\n")

	other := "sign up"
	if m.screen == ScreenSignup {
		other = "sign in"
	}
	b.WriteString(HelpStyle.Render(fmt.Sprintf("Enter:submit  Tab:next  Ctrl+N:%s  Esc:quit", other)))

	return ModalStyle.Render(b.String())
}

func (m Model) renderProfile() string {
	u := m.state.User
	if u == nil {
		return "No profile loaded"
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(truncate(displayName(u), 40)))
	b.WriteString("\n\n")
	rows := []struct{ label, value string }{
		{"Email", u.Email},
		{"Role", u.Role},
		{"Plan", u.Plan},
		{"Company", u.Company},
		{"Phone", u.Phone},
	}
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		b.WriteString(LabelStyle.Render(r.label) + ValueStyle.Render(truncate(r.value, 40)) + "\n")
	}
	if u.Notifications.Email {
		b.WriteString(LabelStyle.Render("Notify") + ValueStyle.Render("email") + "\n")
	}

	return ModalStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderEdit() string {
	content := lipgloss.NewStyle().Bold(true).Render("Edit name") + "\n\n"
	content += m.edit.View() + "\n\n"
	content += HelpStyle.Render("Enter:save  Esc:cancel")

	return ModalStyle.Render(content)
}

func (m Model) renderStatusBar() string {
	help := ""
	switch m.screen {
	case ScreenProfile:
		help = "e:edit  r:verify  L:logout  q:quit"
	case ScreenChecking:
		help = "q:quit"
	}
	if m.message != "" {
		help = m.message
	}

	// Append server health (right aligned)
	healthMsg := ""
	if m.health != nil {
		rec := m.health.Current()
		healthMsg = healthStyle(rec.HealthScore).Render(
			fmt.Sprintf("server %s (%.0fms)", rec.HealthScore, rec.AvgResponseTimeMs))
	}

	if healthMsg != "" {
		avail := m.width - lipgloss.Width(help) - lipgloss.Width(healthMsg) - 2
		if avail > 0 {
			help += strings.Repeat(" ", avail) + healthMsg
		} else {
			help += " " + healthMsg
		}
	}

	return StatusBarStyle.Width(m.width).Render(help)
}

func displayName(u *model.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
