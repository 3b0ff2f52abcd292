// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"errors"
	"fmt"

	"github.com/invowk/relayhook/internal/fetch"
	"github.com/invowk/relayhook/internal/modcache"
	"github.com/invowk/relayhook/internal/runtime"
	"github.com/invowk/relayhook/internal/transpile"
)

// ErrNotPrefetched is thrown by the require shim for specifiers that were not
// string literals, and so could not be fetched ahead of evaluation.
var ErrNotPrefetched = errors.New("module was not prefetched; use import() for computed specifiers")

// PhaseError records the phase in which a hook load failed.
type PhaseError struct {
	Phase Phase
	Key   modcache.Key
	Err   error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("hook %s failed in %s phase: %v", e.Key, e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *PhaseError) Unwrap() error { return e.Err }

// phaseOf attributes an error to the phase that typically produces it. Used
// when the failing load belonged to another caller.
func phaseOf(err error, fallback Phase) Phase {
	var (
		fe *fetch.FetchError
		te *transpile.TranspileError
		ee *runtime.ExecutionError
		cv *runtime.ContractViolation
		ce *modcache.ImportCycleError
	)
	switch {
	case errors.As(err, &ee), errors.As(err, &cv), errors.As(err, &ce):
		return PhaseImport
	case errors.As(err, &te):
		return PhaseTransform
	case errors.As(err, &fe):
		return PhaseFetch
	}
	return fallback
}
