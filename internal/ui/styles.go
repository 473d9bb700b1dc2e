package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.Color("63")
	mutedColor  = lipgloss.Color("240")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(accentColor).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	valueStyle = lipgloss.NewStyle().Bold(true)

	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	confirmStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)
)

func (n notice) render() string {
	switch n.kind {
	case noticeInfo:
		return infoStyle.Render(n.text)
	case noticeSuccess:
		return successStyle.Render("✓ " + n.text)
	case noticeWarning:
		return warningStyle.Render("⚠ " + n.text)
	case noticeError:
		return errorStyle.Render("✗ " + n.text)
	default:
		return ""
	}
}

// Bar colors follow load: green, then yellow, then red
func loadColor(percent float64) lipgloss.Color {
	switch {
	case percent >= 90:
		return lipgloss.Color("196")
	case percent >= 70:
		return lipgloss.Color("226")
	default:
		return lipgloss.Color("10")
	}
}
