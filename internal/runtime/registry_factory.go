// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// CodeRequireExecutorUnavailable indicates the engine has no native require,
	// so only the function executor was registered.
	CodeRequireExecutorUnavailable InitDiagnosticCode = "require_executor_unavailable"
)

// ErrInvalidInitDiagnosticCode is the sentinel error wrapped by InvalidInitDiagnosticCodeError.
var ErrInvalidInitDiagnosticCode = errors.New("invalid init diagnostic code")

type (
	// BuildRegistryOptions configures executor registry construction.
	BuildRegistryOptions struct {
		// Engine backs the require executor's native module loading.
		Engine *Engine
		// Target is the language level of the module-format pass.
		Target string
		// DisposeGrace is how long require-executor resources stay registered.
		DisposeGrace time.Duration
		// Clock times resource disposal. Nil means RealClock.
		Clock  Clock
		Logger *log.Logger
	}

	// InitDiagnosticCode categorizes non-fatal registry initialization diagnostics.
	InitDiagnosticCode string

	// InvalidInitDiagnosticCodeError is returned when an InitDiagnosticCode value
	// is not one of the defined diagnostic codes.
	InvalidInitDiagnosticCodeError struct {
		Value InitDiagnosticCode
	}

	// InitDiagnostic reports non-fatal initialization details.
	InitDiagnostic struct {
		Code    InitDiagnosticCode
		Message string
	}

	// RegistryBuildResult contains the built registry and diagnostics.
	// Registry is always non-nil after BuildRegistry returns.
	RegistryBuildResult struct {
		Registry    *Registry
		Diagnostics []InitDiagnostic
	}
)

// Error implements the error interface.
func (e *InvalidInitDiagnosticCodeError) Error() string {
	return fmt.Sprintf("invalid init diagnostic code %q (valid: %s)",
		e.Value, CodeRequireExecutorUnavailable)
}

// Unwrap returns ErrInvalidInitDiagnosticCode so callers can use errors.Is for programmatic detection.
func (e *InvalidInitDiagnosticCodeError) Unwrap() error { return ErrInvalidInitDiagnosticCode }

// String returns the string representation of the InitDiagnosticCode.
func (c InitDiagnosticCode) String() string { return string(c) }

// Validate returns nil if the InitDiagnosticCode is one of the defined diagnostic codes,
// or a validation error if it is not.
func (c InitDiagnosticCode) Validate() error {
	switch c {
	case CodeRequireExecutorUnavailable:
		return nil
	default:
		return &InvalidInitDiagnosticCodeError{Value: c}
	}
}

// BuildRegistry creates and populates the executor registry.
// The function executor is always registered. The require executor needs an
// engine with native require and is reported via Diagnostics when missing.
func BuildRegistry(opts BuildRegistryOptions) RegistryBuildResult {
	result := RegistryBuildResult{Registry: NewRegistry()}

	result.Registry.Register(NewFunctionExecutor(opts.Target, opts.Logger))

	if opts.Engine == nil || opts.Engine.requirer == nil {
		result.Diagnostics = append(result.Diagnostics, InitDiagnostic{
			Code:    CodeRequireExecutorUnavailable,
			Message: "require executor unavailable: engine has no native require",
		})
		return result
	}

	result.Registry.Register(NewRequireExecutor(opts.Engine, RequireExecutorOptions{
		Target: opts.Target,
		Grace:  opts.DisposeGrace,
		Clock:  opts.Clock,
		Logger: opts.Logger,
	}))
	return result
}
