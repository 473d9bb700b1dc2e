package gpu

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/logger"
	"codeberg.org/mutker/nvidiapl/internal/smi"
)

// Exit statuses pkexec uses when authorization is refused or dismissed
const (
	helperExitNotAuthorized = 126
	helperExitDismissed     = 127
)

const manualHelper = "sudo"

// PowerSetter applies power limits through the vendor tool, escalating with
// a helper such as pkexec when the process is not root.
type PowerSetter struct {
	tool   *smi.Tool
	helper string
	runner smi.Runner
	logger logger.Logger

	// isRoot reports whether the helper can be skipped
	isRoot func() bool
}

// NewPowerSetter returns a setter for tool. An empty helper runs the tool
// directly.
func NewPowerSetter(tool *smi.Tool, helper string, runner smi.Runner, log logger.Logger) *PowerSetter {
	if runner == nil {
		runner = smi.ExecRunner{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &PowerSetter{
		tool:   tool,
		helper: helper,
		runner: runner,
		logger: log,
		isRoot: func() bool { return os.Geteuid() == 0 },
	}
}

type applyOptions struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// ApplyOption configures a single Apply call
type ApplyOption func(*applyOptions)

// WithTerminal connects the helper to a terminal so it can prompt for
// credentials
func WithTerminal(in io.Reader, out, errOut io.Writer) ApplyOption {
	return func(o *applyOptions) {
		o.stdin = in
		o.stdout = out
		o.stderr = errOut
	}
}

// Command returns the program and arguments Apply runs for watts
func (p *PowerSetter) Command(watts int) (string, []string) {
	args := p.tool.SetPowerLimitArgs(watts)
	if p.helper == "" || p.isRoot() {
		return p.tool.Path(), args
	}

	return p.helper, append([]string{p.tool.Path()}, args...)
}

// ManualCommand returns the command line a user with sudo can run instead
func (p *PowerSetter) ManualCommand(watts int) string {
	parts := append([]string{manualHelper, p.tool.Path()}, p.tool.SetPowerLimitArgs(watts)...)
	return strings.Join(parts, " ")
}

// Apply sets the power limit to watts. Values outside limits are rejected
// before anything runs. The call has no deadline so the helper can wait on
// the user.
func (p *PowerSetter) Apply(ctx context.Context, limits PowerLimits, watts int, opts ...ApplyOption) error {
	errFactory := errors.New()

	if !limits.Contains(float64(watts)) {
		return errFactory.WithData(errors.ErrInvalidArgument,
			fmt.Sprintf("%dW outside %s", watts, limits))
	}

	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	name, args := p.Command(watts)
	commandLine := strings.Join(append([]string{name}, args...), " ")

	p.logger.Debug().Str("command", commandLine).Msg("Applying power limit")

	_, err := p.runner.Run(ctx, smi.Invocation{
		Name:   name,
		Args:   args,
		Stdin:  o.stdin,
		Stdout: o.stdout,
		Stderr: o.stderr,
	})
	if err != nil {
		return p.classify(name, commandLine, watts, err)
	}

	p.logger.Info().Int("watts", watts).Msg("Power limit applied")

	return nil
}

func (p *PowerSetter) classify(name, commandLine string, watts int, err error) error {
	errFactory := errors.New()

	var exitErr *smi.ExitError
	switch {
	case smi.IsNotFound(err):
		if name == p.helper {
			return errFactory.Wrap(ErrHelperNotFound, err).
				WithData(ManualCommand{Command: p.ManualCommand(watts)})
		}

		return errFactory.Wrap(smi.ErrToolNotFound, err)
	case errors.Is(err, context.Canceled):
		return errFactory.Wrap(errors.ErrCancelled, err)
	case errors.As(err, &exitErr):
		failure := CommandFailure{
			Command:  commandLine,
			ExitCode: exitErr.Code,
			Output:   exitErr.Output(),
		}
		if name == p.helper && (exitErr.Code == helperExitNotAuthorized || exitErr.Code == helperExitDismissed) {
			// pkexec also exits 127 when it cannot find the tool
			msg := fmt.Sprintf("%s did not run %s (status %d), not authorized or tool missing",
				p.helper, p.tool.Path(), exitErr.Code)

			return errFactory.Wrap(ErrPermissionDenied, err).WithMessage(msg).WithData(failure)
		}

		return errFactory.Wrap(ErrSetPowerLimit, err).WithData(failure)
	default:
		return errFactory.Wrap(ErrSetPowerLimit, err)
	}
}
