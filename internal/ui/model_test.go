package ui

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/gpu"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSetter struct {
	mu    sync.Mutex
	calls []int
	opts  int
	err   error
}

func (f *fakeSetter) Apply(_ context.Context, _ gpu.PowerLimits, watts int, opts ...gpu.ApplyOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, watts)
	f.opts = len(opts)

	return f.err
}

func testSnapshot() gpu.Snapshot {
	return gpu.Snapshot{
		Name:   "NVIDIA GeForce RTX 4090",
		Limits: gpu.PowerLimits{Min: 150, Max: 600, Default: 450, Current: 380},
	}
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "pgup":
		return tea.KeyMsg{Type: tea.KeyPgUp}
	case "pgdown":
		return tea.KeyMsg{Type: tea.KeyPgDown}
	case "home":
		return tea.KeyMsg{Type: tea.KeyHome}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()

	var cmd tea.Cmd
	for _, key := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(key))
		m = next.(Model)
	}

	return m, cmd
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()

	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestNewStartsAtCurrentLimit(t *testing.T) {
	m := New(Options{Snapshot: testSnapshot()})

	assert.Equal(t, 380, m.Target())
	assert.Equal(t, defaultStep, m.step)
}

func TestSelectorStaysWithinBounds(t *testing.T) {
	m := New(Options{Snapshot: testSnapshot(), Step: 25})

	m, _ = press(t, m, "right")
	assert.Equal(t, 405, m.Target())

	m, _ = press(t, m, "left", "left")
	assert.Equal(t, 355, m.Target())

	for i := 0; i < 100; i++ {
		m, _ = press(t, m, "pgup")
	}
	assert.Equal(t, 600, m.Target())

	for i := 0; i < 100; i++ {
		m, _ = press(t, m, "left")
	}
	assert.Equal(t, 150, m.Target())

	m, _ = press(t, m, "end")
	assert.Equal(t, 600, m.Target())
	m, _ = press(t, m, "home")
	assert.Equal(t, 150, m.Target())
}

func TestResetMovesSelectorWithoutApplying(t *testing.T) {
	setter := &fakeSetter{}
	m := New(Options{Snapshot: testSnapshot(), Setter: setter})

	m, cmd := press(t, m, "r")
	assert.Nil(t, cmd)
	assert.Equal(t, 450, m.Target())
	assert.InDelta(t, 380, m.Snapshot().Limits.Current, 0.001)
	assert.False(t, m.confirming)
	assert.Empty(t, setter.calls)
}

func TestConfirmationCanBeDeclined(t *testing.T) {
	for _, key := range []string{"n", "esc"} {
		t.Run(key, func(t *testing.T) {
			setter := &fakeSetter{}
			m := New(Options{Snapshot: testSnapshot(), Setter: setter})

			m, _ = press(t, m, "right", "enter")
			require.True(t, m.confirming)
			assert.Contains(t, m.View(), "Set the power limit to 385W? [y/n]")

			m, cmd := press(t, m, key)
			assert.Nil(t, cmd)
			assert.False(t, m.confirming)
			assert.False(t, m.applying)
			assert.Empty(t, setter.calls)
		})
	}
}

func TestNoWholeWattDisablesApply(t *testing.T) {
	setter := &fakeSetter{}
	snap := gpu.Snapshot{Name: "GPU", Limits: gpu.PowerLimits{Min: 100.3, Max: 100.7, Default: 100.5, Current: 100.5}}
	m := New(Options{Snapshot: snap, Setter: setter})

	m, cmd := press(t, m, "enter", "y")
	assert.Nil(t, cmd)
	assert.False(t, m.confirming)
	assert.False(t, m.applying)
	assert.Empty(t, setter.calls)
	assert.Contains(t, m.View(), "No whole-watt limit lies within 100-101W")
}

func TestConfirmStartsApply(t *testing.T) {
	setter := &fakeSetter{}
	m := New(Options{Snapshot: testSnapshot(), Setter: setter})

	m, cmd := press(t, m, "right", "enter", "y")
	require.NotNil(t, cmd)
	assert.True(t, m.applying)
	assert.Contains(t, m.View(), "Applying 385W...")

	// Keys other than ctrl+c are ignored while the helper runs
	m, _ = press(t, m, "right", "q")
	assert.Equal(t, 385, m.Target())
	assert.False(t, m.quitting)
}

func TestApplyResult(t *testing.T) {
	m := New(Options{Snapshot: testSnapshot(), Setter: &fakeSetter{}})
	m, _ = press(t, m, "right", "enter", "y")

	m, _ = update(t, m, applyResultMsg{watts: 385})
	assert.False(t, m.applying)
	assert.InDelta(t, 385, m.Snapshot().Limits.Current, 0.001)
	assert.Contains(t, m.View(), "Power limit set to 385W")
}

func TestFailedApplyKeepsCurrentLimit(t *testing.T) {
	failure := errors.New().New(gpu.ErrSetPowerLimit).WithData(gpu.CommandFailure{
		Command:  "pkexec nvidia-smi -pl 385",
		ExitCode: 4,
		Output:   "Provided power limit 385.00 W is not a valid power limit",
	})

	m := New(Options{Snapshot: testSnapshot(), Setter: &fakeSetter{}})
	m, _ = press(t, m, "right", "enter", "y")

	m, _ = update(t, m, applyResultMsg{watts: 385, err: failure})
	assert.False(t, m.applying)
	assert.InDelta(t, 380, m.Snapshot().Limits.Current, 0.001)
	assert.Equal(t, 385, m.Target())
	assert.Contains(t, m.View(), "Provided power limit 385.00 W is not a valid power limit")
}

func TestMissingHelperShowsManualCommand(t *testing.T) {
	missing := errors.New().New(gpu.ErrHelperNotFound).
		WithData(gpu.ManualCommand{Command: "sudo nvidia-smi -pl 385"})

	m := New(Options{Snapshot: testSnapshot(), Setter: &fakeSetter{}})
	m, _ = update(t, m, applyResultMsg{watts: 385, err: missing})

	assert.Contains(t, m.View(), "run manually: sudo nvidia-smi -pl 385")
}

func TestApplyCommandHandsOverTerminal(t *testing.T) {
	setter := &fakeSetter{}
	cmd := &applyCommand{
		ctx:    context.Background(),
		setter: setter,
		limits: testSnapshot().Limits,
		watts:  400,
	}

	var out bytes.Buffer
	cmd.SetStdin(strings.NewReader(""))
	cmd.SetStdout(&out)
	cmd.SetStderr(&out)

	require.NoError(t, cmd.Run())
	assert.Equal(t, []int{400}, setter.calls)
	assert.Equal(t, 1, setter.opts)
}

func TestStatsUpdateSnapshot(t *testing.T) {
	samples := make(chan gpu.Stats, 1)

	var mu sync.Mutex
	var recorded []gpu.Snapshot
	m := New(Options{
		Snapshot: testSnapshot(),
		Samples:  samples,
		OnSample: func(s gpu.Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			recorded = append(recorded, s)
		},
	})
	assert.Contains(t, m.View(), "Waiting for stats...")

	samples <- gpu.Stats{TemperatureC: 65, UtilizationPct: 40, PowerDrawW: 120.5, VRAMTotalMB: 24576, VRAMUsedMB: 8192}
	msg := m.listen()()
	require.IsType(t, statsMsg{}, msg)

	m, cmd := update(t, m, msg)
	require.NotNil(t, cmd)
	assert.True(t, m.Snapshot().HasStats)
	assert.Equal(t, 65, m.Snapshot().Stats.TemperatureC)

	view := m.View()
	assert.Contains(t, view, "65°C")
	assert.Contains(t, view, "33%")
	assert.Contains(t, view, "8.0 GiB / 24 GiB")

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		samples <- gpu.Stats{}
		c()
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, recorded, 1)
	assert.Equal(t, 65, recorded[0].Stats.TemperatureC)
}

func TestClosedSamplesStopListening(t *testing.T) {
	samples := make(chan gpu.Stats)
	close(samples)

	m := New(Options{Snapshot: testSnapshot(), Samples: samples})
	m, cmd := update(t, m, m.listen()())

	assert.Nil(t, cmd)
	assert.Nil(t, m.listen())
	assert.False(t, m.Snapshot().HasStats)
}

func TestDetectionWarningShown(t *testing.T) {
	m := New(Options{
		Snapshot:  gpu.Placeholder(),
		DetectErr: errors.New().New(gpu.ErrDetectFailed),
	})

	view := m.View()
	assert.Contains(t, view, "Unknown GPU")
	assert.Contains(t, view, "GPU detection failed")
	assert.Equal(t, 200, m.Target())
}

func TestQuit(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		m := New(Options{Snapshot: testSnapshot()})
		m, cmd := press(t, m, key)

		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.True(t, m.quitting)
		assert.Empty(t, m.View())
	}
}
