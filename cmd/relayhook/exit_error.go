// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/invowk/relayhook/internal/config"
	"github.com/invowk/relayhook/internal/issue"
	"github.com/invowk/relayhook/internal/loader"
	"github.com/invowk/relayhook/internal/runtime"
	"github.com/invowk/relayhook/pkg/types"
)

// ExitError carries the process exit status out of a RunE handler, so the
// failure is rendered once and Execute alone calls os.Exit.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d (%s)", int(e.Code), e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitCodeFor picks the status for a failed command. Hook failures exit 1,
// invocation mistakes 2 and configuration problems 78.
func exitCodeFor(err error) types.ExitCode {
	switch {
	case err == nil:
		return types.ExitSuccess
	case errors.Is(err, loader.ErrNoHost),
		errors.Is(err, runtime.ErrExecutorNotFound),
		errors.Is(err, config.ErrInvalidLogLevel):
		return types.ExitUsage
	case errors.Is(err, config.ErrInvalidConfig):
		return types.ExitConfig
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.IssueID == issue.ConfigLoadFailedId {
		return types.ExitConfig
	}
	if issue.IssueOf(err) == issue.ConfigLoadFailedId {
		return types.ExitConfig
	}
	return types.ExitFailure
}
