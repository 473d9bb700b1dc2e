package smi

import (
	"fmt"
	"strings"

	"codeberg.org/mutker/nvidiapl/internal/errors"
)

const (
	ErrToolNotFound  = errors.ErrorCode("smi_tool_not_found")
	ErrCommandFailed = errors.ErrorCode("smi_command_failed")
	ErrParseFailed   = errors.ErrorCode("smi_parse_failed")
	ErrQueryTimeout  = errors.ErrorCode("smi_query_timeout")
)

func init() {
	errors.Register(ErrToolNotFound, "Vendor tool not found")
	errors.Register(ErrCommandFailed, "Vendor tool exited with an error")
	errors.Register(ErrParseFailed, "Failed to parse vendor tool output")
	errors.Register(ErrQueryTimeout, "Vendor tool query timed out")
}

// ExitError reports a command that ran and exited non-zero
type ExitError struct {
	Name   string
	Code   int
	Stdout []byte
	Stderr []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

// Output returns what the command printed about its failure: stderr when
// present, otherwise stdout.
func (e *ExitError) Output() string {
	if out := strings.TrimSpace(string(e.Stderr)); out != "" {
		return out
	}

	return strings.TrimSpace(string(e.Stdout))
}
