// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// ExitSuccess is returned when the command completed.
	ExitSuccess ExitCode = 0
	// ExitFailure is returned when a hook failed to load or run.
	ExitFailure ExitCode = 1
	// ExitUsage is returned when the invocation itself is wrong: a missing
	// peer host, an unknown executor or a bad flag value.
	ExitUsage ExitCode = 2
	// ExitConfig is returned when the configuration could not be loaded
	// (EX_CONFIG from sysexits.h).
	ExitConfig ExitCode = 78
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates success.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// String returns the name of a known code, or its decimal value.
func (c ExitCode) String() string {
	switch c {
	case ExitSuccess:
		return "success"
	case ExitFailure:
		return "failure"
	case ExitUsage:
		return "usage"
	case ExitConfig:
		return "config"
	default:
		return strconv.Itoa(int(c))
	}
}
