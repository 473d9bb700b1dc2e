// Package ui is the terminal dashboard: live stats for one GPU and a bounded
// power-limit selector.
package ui

import (
	"context"
	"io"

	"codeberg.org/mutker/nvidiapl/internal/gpu"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultStep   = 5
	pageStepCount = 5
	barWidth      = 30
)

// LimitSetter applies power limits
type LimitSetter interface {
	Apply(ctx context.Context, limits gpu.PowerLimits, watts int, opts ...gpu.ApplyOption) error
}

// Options configure a dashboard Model
type Options struct {
	Context  context.Context
	Snapshot gpu.Snapshot

	// DetectErr is shown once as a warning when detection fell back to the
	// placeholder snapshot
	DetectErr error

	Setter  LimitSetter
	Samples <-chan gpu.Stats

	// Step is the selector increment in watts
	Step int

	// OnSample, when set, is called with the snapshot after every stats
	// update. It runs outside the event loop.
	OnSample func(gpu.Snapshot)
}

type noticeKind int

const (
	noticeNone noticeKind = iota
	noticeInfo
	noticeSuccess
	noticeWarning
	noticeError
)

type notice struct {
	kind noticeKind
	text string
}

// Model is the dashboard state. It owns the snapshot; background readings
// arrive as messages.
type Model struct {
	ctx      context.Context
	snapshot gpu.Snapshot
	setter   LimitSetter
	samples  <-chan gpu.Stats
	onSample func(gpu.Snapshot)

	target     int
	step       int
	confirming bool
	applying   bool
	notice     notice

	spinner  spinner.Model
	selector progress.Model
	width    int
	quitting bool
}

// statsMsg carries one poller reading; ok is false once the poller stopped
type statsMsg struct {
	stats gpu.Stats
	ok    bool
}

// applyResultMsg reports the outcome of a set-limit call
type applyResultMsg struct {
	watts int
	err   error
}

func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	step := opts.Step
	if step <= 0 {
		step = defaultStep
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := Model{
		ctx:      ctx,
		snapshot: opts.Snapshot,
		setter:   opts.Setter,
		samples:  opts.Samples,
		onSample: opts.OnSample,
		step:     step,
		spinner:  s,
		selector: progress.New(
			progress.WithSolidFill(string(accentColor)),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		),
	}
	m.target = m.snapshot.Limits.Clamp(int(m.snapshot.Limits.Current))

	if opts.DetectErr != nil {
		m.notice = notice{kind: noticeWarning, text: "GPU detection failed, using placeholder limits: " + opts.DetectErr.Error()}
	}

	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.spinner.Tick)
}

// Snapshot returns the dashboard's current view of the GPU
func (m Model) Snapshot() gpu.Snapshot {
	return m.snapshot
}

// Target returns the selected power limit in watts
func (m Model) Target() int {
	return m.target
}

// listen waits for the next poller reading
func (m Model) listen() tea.Cmd {
	if m.samples == nil {
		return nil
	}

	ch := m.samples
	return func() tea.Msg {
		stats, ok := <-ch
		return statsMsg{stats: stats, ok: ok}
	}
}

// applyCommand runs a set-limit call with the terminal handed over, so the
// helper can prompt for credentials
type applyCommand struct {
	ctx    context.Context
	setter LimitSetter
	limits gpu.PowerLimits
	watts  int
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *applyCommand) Run() error {
	return c.setter.Apply(c.ctx, c.limits, c.watts, gpu.WithTerminal(c.stdin, c.stdout, c.stderr))
}

func (c *applyCommand) SetStdin(r io.Reader)  { c.stdin = r }
func (c *applyCommand) SetStdout(w io.Writer) { c.stdout = w }
func (c *applyCommand) SetStderr(w io.Writer) { c.stderr = w }

func (m Model) apply() tea.Cmd {
	watts := m.target
	cmd := &applyCommand{
		ctx:    m.ctx,
		setter: m.setter,
		limits: m.snapshot.Limits,
		watts:  watts,
	}

	return tea.Exec(cmd, func(err error) tea.Msg {
		return applyResultMsg{watts: watts, err: err}
	})
}
