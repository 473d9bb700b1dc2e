package gpu

import (
	"fmt"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	// Detection Errors
	ErrDetectFailed      = errors.ErrorCode("gpu_detect_failed")
	ErrPowerLimitsFailed = errors.ErrorCode("gpu_power_limits_failed")
	ErrInvalidStats      = errors.ErrorCode("gpu_invalid_stats")

	// Power Management Errors
	ErrSetPowerLimit    = errors.ErrorCode("gpu_set_power_limit_failed")
	ErrPermissionDenied = errors.ErrorCode("gpu_permission_denied")
	ErrHelperNotFound   = errors.ErrorCode("gpu_helper_not_found")

	// NVML Errors
	ErrNVMLFailed = errors.ErrorCode("gpu_nvml_failed")
)

func init() {
	errors.Register(ErrDetectFailed, "Failed to detect GPU")
	errors.Register(ErrPowerLimitsFailed, "Could not parse power limits")
	errors.Register(ErrInvalidStats, "Invalid stats reading")
	errors.Register(ErrSetPowerLimit, "Failed to apply limit")
	errors.Register(ErrPermissionDenied, "Not authorized to set the power limit")
	errors.Register(ErrHelperNotFound, "Privilege-escalation helper not found")
	errors.Register(ErrNVMLFailed, "NVML operation failed")
}

// CommandFailure describes a set-limit invocation that exited non-zero
type CommandFailure struct {
	Command  string
	ExitCode int
	Output   string
}

func (f CommandFailure) String() string {
	if f.Output != "" {
		return f.Output
	}

	return fmt.Sprintf("%s exited with status %d", f.Command, f.ExitCode)
}

// ManualCommand is the command a user can run themselves when the helper is
// unavailable
type ManualCommand struct {
	Command string
}

func (m ManualCommand) String() string {
	return "run manually: " + m.Command
}

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}

	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
