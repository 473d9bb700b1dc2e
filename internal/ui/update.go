package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case statsMsg:
		if !msg.ok {
			m.samples = nil
			return m, nil
		}
		m.snapshot.ApplyStats(msg.stats)

		return m, tea.Batch(m.listen(), m.sampleHook())

	case applyResultMsg:
		m.applying = false
		if msg.err != nil {
			// The stored limit only changes on success
			m.notice = notice{kind: noticeError, text: msg.err.Error()}
			return m, nil
		}
		m.snapshot.SetCurrentLimit(float64(msg.watts))
		m.notice = notice{kind: noticeSuccess, text: fmt.Sprintf("Power limit set to %dW", msg.watts)}

		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)

	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.applying {
		return m, nil
	}

	if m.confirming {
		switch key {
		case "y", "Y":
			m.confirming = false
			if m.setter == nil {
				m.notice = notice{kind: noticeError, text: "Setting power limits is unavailable"}
				return m, nil
			}
			m.applying = true
			m.notice = notice{}
			return m, tea.Batch(m.apply(), m.spinner.Tick)
		case "n", "N", "esc", "q":
			m.confirming = false
			m.notice = notice{kind: noticeInfo, text: "Cancelled"}
		}
		return m, nil
	}

	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "left", "h", "-", "down", "j":
		m.moveTarget(-m.step)
	case "right", "l", "+", "=", "up", "k":
		m.moveTarget(m.step)
	case "pgdown":
		m.moveTarget(-m.step * pageStepCount)
	case "pgup":
		m.moveTarget(m.step * pageStepCount)
	case "home":
		m.target = m.snapshot.Limits.Clamp(int(m.snapshot.Limits.Min))
	case "end":
		m.target = m.snapshot.Limits.Clamp(int(m.snapshot.Limits.Max))
	case "r":
		m.target = m.snapshot.Limits.Clamp(int(m.snapshot.Limits.Default))
		m.notice = notice{kind: noticeInfo, text: fmt.Sprintf("Selector reset to default %dW, press enter to apply", m.target)}
	case "enter", "a":
		if !m.snapshot.Limits.Selectable() {
			m.notice = notice{kind: noticeError, text: fmt.Sprintf("No whole-watt limit lies within %s", m.snapshot.Limits)}
			return m, nil
		}
		m.confirming = true
	}

	return m, nil
}

func (m *Model) moveTarget(delta int) {
	m.target = m.snapshot.Limits.Clamp(m.target + delta)
}

func (m Model) sampleHook() tea.Cmd {
	if m.onSample == nil {
		return nil
	}

	snap := m.snapshot
	hook := m.onSample

	return func() tea.Msg {
		hook(snap)
		return nil
	}
}
