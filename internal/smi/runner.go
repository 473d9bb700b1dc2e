package smi

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os/exec"

	"codeberg.org/mutker/nvidiapl/internal/errors"
)

// Invocation describes a single command run
type Invocation struct {
	Name string
	Args []string

	// Optional terminal wiring for commands that may prompt, such as a
	// privilege-escalation helper. Output is still captured.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner runs external commands and returns their standard output. A
// non-zero exit is reported as *ExitError. A missing executable is reported
// as an error for which IsNotFound holds.
type Runner interface {
	Run(ctx context.Context, inv Invocation) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Stdin = inv.Stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if inv.Stdout != nil {
		cmd.Stdout = io.MultiWriter(&stdout, inv.Stdout)
	}
	if inv.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, inv.Stderr)
	}

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return stdout.Bytes(), ctx.Err()
		}

		return stdout.Bytes(), &ExitError{
			Name:   inv.Name,
			Code:   exitErr.ExitCode(),
			Stdout: stdout.Bytes(),
			Stderr: stderr.Bytes(),
		}
	}

	return stdout.Bytes(), err
}

// IsNotFound reports whether err means the executable does not exist. A bare
// name fails the PATH lookup, a path fails at exec time.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
