package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const bytesPerMB = 1024 * 1024

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("  NVIDIA Power Limit  "))
	b.WriteString("  ")
	b.WriteString(headerStyle.Render(m.snapshot.Name))
	b.WriteString("\n\n")

	b.WriteString(m.renderStats())
	b.WriteString("\n")
	b.WriteString(m.renderLimits())
	b.WriteString("\n")

	if line := m.notice.render(); line != "" {
		b.WriteString(line)
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderFooter())
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderStats() string {
	if !m.snapshot.HasStats {
		return fmt.Sprintf("%s %s\n", m.spinner.View(), mutedStyle.Render("Waiting for stats..."))
	}

	s := m.snapshot.Stats
	vram := s.VRAMPercent()

	rows := []string{
		row("Temperature", fmt.Sprintf("%d°C", s.TemperatureC)),
		row("Utilization", fmt.Sprintf("%s %3d%%", renderBar(float64(s.UtilizationPct), barWidth), s.UtilizationPct)),
		row("Power draw", fmt.Sprintf("%.1fW of %.0fW", s.PowerDrawW, m.snapshot.Limits.Current)),
		row("VRAM", fmt.Sprintf("%s %3d%%  %s / %s", renderBar(float64(vram), barWidth), vram,
			FormatMB(s.VRAMUsedMB), FormatMB(s.VRAMTotalMB))),
	}

	return strings.Join(rows, "\n") + "\n"
}

func (m Model) renderLimits() string {
	l := m.snapshot.Limits
	var percent float64
	if l.Max > 0 {
		percent = float64(m.target) / l.Max
	}

	rows := []string{
		row("Current limit", fmt.Sprintf("%.0fW", l.Current)),
		row("Default", fmt.Sprintf("%.0fW", l.Default)),
		row("Range", l.String()),
		row("Target", fmt.Sprintf("%s %s %s",
			m.selector.ViewAs(percent),
			valueStyle.Render(fmt.Sprintf("%dW", m.target)),
			mutedStyle.Render(fmt.Sprintf("(%d%% of max)", l.Percent(float64(m.target)))))),
	}

	return strings.Join(rows, "\n") + "\n"
}

func (m Model) renderFooter() string {
	switch {
	case m.applying:
		return fmt.Sprintf("%s Applying %dW...", m.spinner.View(), m.target)
	case m.confirming:
		return confirmStyle.Render(fmt.Sprintf("Set the power limit to %dW? [y/n]", m.target))
	default:
		return mutedStyle.Render(fmt.Sprintf(
			"←/→ ±%dW  pgup/pgdn ±%dW  home/end min/max  r default  enter apply  q quit",
			m.step, m.step*pageStepCount))
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func renderBar(percent float64, width int) string {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	filled := int(float64(width) * percent / 100.0)
	empty := width - filled

	filledStyle := lipgloss.NewStyle().Foreground(loadColor(percent))
	emptyStyle := lipgloss.NewStyle().Foreground(mutedColor)

	return filledStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", empty))
}

// FormatMB renders a size given in MiB for display
func FormatMB(mb int) string {
	if mb < 0 {
		mb = 0
	}

	return humanize.IBytes(uint64(mb) * bytesPerMB)
}
