// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultExecutor is the executor used when none is configured.
const DefaultExecutor = ExecutorFunction

// ErrExecutorNotFound is the sentinel wrapped by UnknownExecutorError.
var ErrExecutorNotFound = errors.New("executor not found")

type (
	// UnknownExecutorError is returned when a registry has no executor with
	// the requested name.
	UnknownExecutorError struct {
		Name      string
		Available []string
	}

	// Registry holds all available executors.
	Registry struct {
		executors map[string]Executor
	}
)

// Error implements the error interface.
func (e *UnknownExecutorError) Error() string {
	return fmt.Sprintf("executor %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Unwrap returns ErrExecutorNotFound so callers can use errors.Is for programmatic detection.
func (e *UnknownExecutorError) Unwrap() error { return ErrExecutorNotFound }

// NewRegistry creates a new executor registry
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor under its name, replacing any previous one.
func (r *Registry) Register(x Executor) {
	r.executors[x.Name()] = x
}

// Get returns the executor registered as name. An empty name selects
// DefaultExecutor.
func (r *Registry) Get(name string) (Executor, error) {
	if name == "" {
		name = DefaultExecutor
	}
	x, ok := r.executors[name]
	if !ok {
		return nil, &UnknownExecutorError{Name: name, Available: r.Available()}
	}
	return x, nil
}

// Available returns the registered executor names, sorted.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
