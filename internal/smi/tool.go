// Package smi invokes the NVIDIA System Management Interface tool and parses
// the text it prints.
package smi

import (
	"context"
	"strconv"
	"time"

	"codeberg.org/mutker/nvidiapl/internal/errors"
)

const (
	nameQuery    = "--query-gpu=name"
	nameFormat   = "--format=csv,noheader"
	statsQuery   = "--query-gpu=temperature.gpu,utilization.gpu,power.draw,memory.total,memory.used"
	statsFormat  = "--format=csv,noheader,nounits"
	reportFlag   = "-q"
	powerLimFlag = "-pl"
	deviceFlag   = "-i"

	// NoDevice leaves device selection to the tool, which reports every GPU
	NoDevice = -1
)

// Tool queries a vendor tool binary
type Tool struct {
	path    string
	device  int
	timeout time.Duration
	runner  Runner
}

// NewTool returns a Tool running path through runner. A device below zero
// omits -i, otherwise every invocation targets that GPU index. A zero
// timeout disables the per-query deadline.
func NewTool(path string, device int, timeout time.Duration, runner Runner) *Tool {
	if runner == nil {
		runner = ExecRunner{}
	}

	return &Tool{
		path:    path,
		device:  device,
		timeout: timeout,
		runner:  runner,
	}
}

// Path returns the tool executable
func (t *Tool) Path() string {
	return t.path
}

// Args appends device selection to args
func (t *Tool) Args(args ...string) []string {
	out := append([]string(nil), args...)
	if t.device >= 0 {
		out = append(out, deviceFlag, strconv.Itoa(t.device))
	}

	return out
}

// SetPowerLimitArgs returns the tool arguments that set a power limit
func (t *Tool) SetPowerLimitArgs(watts int) []string {
	return t.Args(powerLimFlag, strconv.Itoa(watts))
}

// Name queries the product name
func (t *Tool) Name(ctx context.Context) (string, error) {
	out, err := t.query(ctx, nameQuery, nameFormat)
	if err != nil {
		return "", err
	}

	return ParseName(string(out))
}

// Report queries the full text report
func (t *Tool) Report(ctx context.Context) (*Report, error) {
	out, err := t.query(ctx, reportFlag)
	if err != nil {
		return nil, err
	}

	return ParseReport(string(out))
}

// Stats queries live telemetry
func (t *Tool) Stats(ctx context.Context) (StatsRecord, error) {
	out, err := t.query(ctx, statsQuery, statsFormat)
	if err != nil {
		return StatsRecord{}, err
	}

	return ParseStats(string(out))
}

func (t *Tool) query(ctx context.Context, args ...string) ([]byte, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	out, err := t.runner.Run(ctx, Invocation{Name: t.path, Args: t.Args(args...)})
	if err != nil {
		return nil, Classify(err)
	}

	return out, nil
}

// Classify converts a Runner error into a coded error
func Classify(err error) error {
	errFactory := errors.New()

	var exitErr *ExitError
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return errFactory.Wrap(ErrToolNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		return errFactory.Wrap(ErrQueryTimeout, err)
	case errors.Is(err, context.Canceled):
		return errFactory.Wrap(errors.ErrCancelled, err)
	case errors.As(err, &exitErr):
		if out := exitErr.Output(); out != "" {
			return errFactory.Wrap(ErrCommandFailed, err).WithData(out)
		}

		return errFactory.Wrap(ErrCommandFailed, err)
	default:
		return errFactory.Wrap(errors.ErrOperationFailed, err)
	}
}
