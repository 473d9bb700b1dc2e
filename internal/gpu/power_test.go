package gpu

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"testing"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/smi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = PowerLimits{Min: 100, Max: 250, Default: 220, Current: 200}

func newTestSetter(runner smi.Runner, helper string, root bool) *PowerSetter {
	setter := NewPowerSetter(smi.NewTool("nvidia-smi", smi.NoDevice, 0, runner), helper, runner, nil)
	setter.isRoot = func() bool { return root }

	return setter
}

func TestPowerSetterCommand(t *testing.T) {
	tests := []struct {
		name     string
		helper   string
		root     bool
		wantName string
		wantArgs []string
	}{
		{
			name:     "through helper",
			helper:   "pkexec",
			wantName: "pkexec",
			wantArgs: []string{"nvidia-smi", "-pl", "180"},
		},
		{
			name:     "no helper",
			wantName: "nvidia-smi",
			wantArgs: []string{"-pl", "180"},
		},
		{
			name:     "already root",
			helper:   "pkexec",
			root:     true,
			wantName: "nvidia-smi",
			wantArgs: []string{"-pl", "180"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args := newTestSetter(&scriptedRunner{}, tt.helper, tt.root).Command(180)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestPowerSetterCommandWithDevice(t *testing.T) {
	runner := &scriptedRunner{}
	setter := NewPowerSetter(smi.NewTool("/usr/bin/nvidia-smi", 1, 0, runner), "pkexec", runner, nil)
	setter.isRoot = func() bool { return false }

	name, args := setter.Command(150)
	assert.Equal(t, "pkexec", name)
	assert.Equal(t, []string{"/usr/bin/nvidia-smi", "-pl", "150", "-i", "1"}, args)
	assert.Equal(t, "sudo /usr/bin/nvidia-smi -pl 150 -i 1", setter.ManualCommand(150))
}

func TestPowerSetterApply(t *testing.T) {
	runner := &scriptedRunner{}
	setter := newTestSetter(runner, "pkexec", false)

	var stdout bytes.Buffer
	err := setter.Apply(context.Background(), testLimits, 180, WithTerminal(nil, &stdout, &stdout))
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "pkexec", runner.calls[0].Name)
	assert.Equal(t, []string{"nvidia-smi", "-pl", "180"}, runner.calls[0].Args)
	assert.Same(t, &stdout, runner.calls[0].Stdout)
}

func TestPowerSetterRejectsOutOfRange(t *testing.T) {
	for _, watts := range []int{0, 99, 251, 1000} {
		t.Run(fmt.Sprint(watts), func(t *testing.T) {
			runner := &scriptedRunner{}
			err := newTestSetter(runner, "pkexec", false).Apply(context.Background(), testLimits, watts)

			require.Error(t, err)
			assert.Equal(t, errors.ErrInvalidArgument, errors.CodeOf(err))
			assert.Empty(t, runner.calls)
		})
	}
}

func TestPowerSetterAcceptsBounds(t *testing.T) {
	for _, watts := range []int{100, 250} {
		runner := &scriptedRunner{}
		assert.NoError(t, newTestSetter(runner, "pkexec", false).Apply(context.Background(), testLimits, watts))
	}
}

func TestPowerSetterFailures(t *testing.T) {
	tests := []struct {
		name       string
		helper     string
		err        error
		wantCode   errors.ErrorCode
		wantOutput string
	}{
		{
			name:   "tool rejects limit",
			helper: "pkexec",
			err: &smi.ExitError{
				Name:   "pkexec",
				Code:   4,
				Stdout: []byte("Provided power limit 180.00 W is not a valid power limit"),
			},
			wantCode:   ErrSetPowerLimit,
			wantOutput: "Provided power limit 180.00 W is not a valid power limit",
		},
		{
			name:   "stderr preferred",
			helper: "pkexec",
			err: &smi.ExitError{
				Name:   "pkexec",
				Code:   1,
				Stdout: []byte("ignored"),
				Stderr: []byte("Insufficient Permissions"),
			},
			wantCode:   ErrSetPowerLimit,
			wantOutput: "Insufficient Permissions",
		},
		{
			name:     "authorization refused",
			helper:   "pkexec",
			err:      &smi.ExitError{Name: "pkexec", Code: 127},
			wantCode: ErrPermissionDenied,
		},
		{
			name:   "helper cannot find tool",
			helper: "pkexec",
			err: &smi.ExitError{
				Name:   "pkexec",
				Code:   127,
				Stderr: []byte("Cannot run program nvidia-smi: No such file or directory"),
			},
			wantCode:   ErrPermissionDenied,
			wantOutput: "Cannot run program nvidia-smi: No such file or directory",
		},
		{
			name:     "authorization dismissed",
			helper:   "pkexec",
			err:      &smi.ExitError{Name: "pkexec", Code: 126},
			wantCode: ErrPermissionDenied,
		},
		{
			name:     "tool exit 126 without helper",
			err:      &smi.ExitError{Name: "nvidia-smi", Code: 126},
			wantCode: ErrSetPowerLimit,
		},
		{
			name:     "tool missing",
			err:      &exec.Error{Name: "nvidia-smi", Err: exec.ErrNotFound},
			wantCode: smi.ErrToolNotFound,
		},
		{
			name:     "cancelled",
			helper:   "pkexec",
			err:      context.Canceled,
			wantCode: errors.ErrCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{errs: map[string]error{"": tt.err}}
			err := newTestSetter(runner, tt.helper, false).Apply(context.Background(), testLimits, 180)

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))

			if tt.wantOutput != "" {
				failure, ok := errors.DataOf[CommandFailure](err)
				require.True(t, ok)
				assert.Equal(t, tt.wantOutput, failure.Output)
				assert.Equal(t, tt.wantOutput, failure.String())
				assert.Contains(t, err.Error(), tt.wantOutput)
			}
		})
	}
}

func TestPowerSetterHelperMissing(t *testing.T) {
	runner := &scriptedRunner{errs: map[string]error{
		"": &exec.Error{Name: "pkexec", Err: exec.ErrNotFound},
	}}
	err := newTestSetter(runner, "pkexec", false).Apply(context.Background(), testLimits, 180)

	require.Error(t, err)
	assert.Equal(t, ErrHelperNotFound, errors.CodeOf(err))

	manual, ok := errors.DataOf[ManualCommand](err)
	require.True(t, ok)
	assert.Equal(t, "sudo nvidia-smi -pl 180", manual.Command)
	assert.Equal(t, "run manually: sudo nvidia-smi -pl 180", manual.String())
}

func TestPowerSetterHelperPathMissing(t *testing.T) {
	tool := smi.NewTool("nvidia-smi", smi.NoDevice, 0, smi.ExecRunner{})
	setter := NewPowerSetter(tool, "/nonexistent/pkexec", smi.ExecRunner{}, nil)
	setter.isRoot = func() bool { return false }

	err := setter.Apply(context.Background(), PowerLimits{Min: 100, Max: 200, Default: 200, Current: 200}, 150)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrHelperNotFound))

	manual, ok := errors.DataOf[ManualCommand](err)
	require.True(t, ok)
	assert.Equal(t, "sudo nvidia-smi -pl 150", manual.Command)
}

func TestPowerSetterToolPathMissing(t *testing.T) {
	tool := smi.NewTool("/nonexistent/nvidia-smi", smi.NoDevice, 0, smi.ExecRunner{})
	setter := NewPowerSetter(tool, "", smi.ExecRunner{}, nil)

	err := setter.Apply(context.Background(), testLimits, 180)

	require.Error(t, err)
	assert.Equal(t, smi.ErrToolNotFound, errors.CodeOf(err))
}

func TestPermissionDeniedNamesHelperAndTool(t *testing.T) {
	runner := &scriptedRunner{errs: map[string]error{"": &smi.ExitError{Name: "pkexec", Code: 127}}}
	err := newTestSetter(runner, "pkexec", false).Apply(context.Background(), testLimits, 180)

	require.Error(t, err)
	assert.Equal(t, ErrPermissionDenied, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "pkexec did not run nvidia-smi (status 127)")
}

func TestFailedApplyKeepsCurrentLimit(t *testing.T) {
	runner := &scriptedRunner{errs: map[string]error{"": &smi.ExitError{Name: "pkexec", Code: 1}}}
	setter := newTestSetter(runner, "pkexec", false)

	snap := Snapshot{Name: "GPU", Limits: testLimits}
	if err := setter.Apply(context.Background(), snap.Limits, 180); err == nil {
		snap.SetCurrentLimit(180)
	}

	assert.InDelta(t, 200, snap.Limits.Current, 0.001)
}
