package types

import "errors"

// Core netimpair errors for common failure scenarios
var (
	// ErrRootRequired is returned when the process lacks the privileges
	// needed to modify kernel network configuration
	ErrRootRequired = errors.New("root privileges required")

	// ErrProvisioning is returned when a required setup command fails
	ErrProvisioning = errors.New("provisioning failed")

	// ErrApply is returned when a command in the impairment toggle loop fails
	ErrApply = errors.New("impairment apply failed")

	// ErrInterrupted is returned when a run is cut short by a signal or
	// other cancellation
	ErrInterrupted = errors.New("impairment interrupted")

	// ErrMalformedSelector is returned when a flow selector token cannot be parsed
	ErrMalformedSelector = errors.New("malformed flow selector")

	// ErrInvalidProfile is returned when impairment parameters are out of range
	ErrInvalidProfile = errors.New("invalid impairment profile")

	// ErrInvalidSchedule is returned when a toggle schedule cannot be constructed
	ErrInvalidSchedule = errors.New("invalid toggle schedule")

	// ErrContainerNotFound is returned when a specified container cannot be found
	ErrContainerNotFound = errors.New("container not found")
)

// ExitCode maps an error chain to the process exit status: 0 for success,
// 5 for apply failures and signal-triggered aborts, 1 for everything else
// (privilege, configuration, and provisioning failures).
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrApply), errors.Is(err, ErrInterrupted):
		return 5
	default:
		return 1
	}
}
