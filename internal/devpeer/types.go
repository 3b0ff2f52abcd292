// SPDX-License-Identifier: MPL-2.0

package devpeer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultHost binds to loopback only.
	DefaultHost = "127.0.0.1"
	// DefaultStartupTimeout bounds Start.
	DefaultStartupTimeout = 5 * time.Second
	// DefaultShutdownTimeout bounds Stop.
	DefaultShutdownTimeout = 5 * time.Second
)

var (
	// ErrInvalidPort is the sentinel wrapped by InvalidPortError.
	ErrInvalidPort = errors.New("invalid listen port")
	// ErrInvalidBranch is the sentinel wrapped by InvalidBranchError.
	ErrInvalidBranch = errors.New("invalid branch name")
	// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid dev peer config")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("dev peer already started")
)

type (
	// Port is a TCP port. Zero picks a free port.
	Port int

	// Branch names a sub-directory of the served directory.
	Branch string

	// InvalidPortError is returned for ports outside 0..65535.
	InvalidPortError struct {
		Value Port
	}

	// InvalidBranchError is returned for branch names that would escape the
	// served directory.
	InvalidBranchError struct {
		Value Branch
	}

	// InvalidConfigError collects the field errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config configures a Server.
	Config struct {
		// Dir is the directory served as the peer root.
		Dir string
		// Host defaults to DefaultHost.
		Host string
		Port Port
		// StartupTimeout and ShutdownTimeout default to five seconds.
		StartupTimeout  time.Duration
		ShutdownTimeout time.Duration
		Logger          *log.Logger
	}
)

// Validate rejects ports outside the TCP range.
func (p Port) Validate() error {
	if p < 0 || p > 65535 {
		return &InvalidPortError{Value: p}
	}
	return nil
}

// Validate rejects names that are not a single path element.
func (b Branch) Validate() error {
	s := string(b)
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return &InvalidBranchError{Value: b}
	}
	return nil
}

// Validate checks every field and reports all failures at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Dir) == "" {
		errs = append(errs, errors.New("dir must be set"))
	}
	if err := c.Port.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.StartupTimeout < 0 || c.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid listen port %d: must be between 0 and 65535", e.Value)
}

// Unwrap returns ErrInvalidPort for errors.Is() compatibility.
func (e *InvalidPortError) Unwrap() error { return ErrInvalidPort }

// Error implements the error interface.
func (e *InvalidBranchError) Error() string {
	return fmt.Sprintf("invalid branch name %q: must be a single path element", e.Value)
}

// Unwrap returns ErrInvalidBranch for errors.Is() compatibility.
func (e *InvalidBranchError) Unwrap() error { return ErrInvalidBranch }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid dev peer config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
