// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invowk/relayhook/internal/config"
	"github.com/invowk/relayhook/internal/devpeer"
	"github.com/invowk/relayhook/internal/fetch"
	"github.com/invowk/relayhook/internal/issue"
	"github.com/invowk/relayhook/internal/loader"
	"github.com/invowk/relayhook/internal/modcache"
	"github.com/invowk/relayhook/internal/runtime"
	"github.com/invowk/relayhook/internal/transpile"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID, StyledMessage: styledMessage}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// classifyError maps a failure to the issue page that explains it. A page
// attached to an ActionableError wins over the sentinel mapping.
func classifyError(err error) issue.Id {
	if id := issue.IssueOf(err); id != 0 {
		return id
	}
	switch {
	case errors.Is(err, fetch.ErrHTMLResponse):
		return issue.HTMLResponseId
	case errors.Is(err, modcache.ErrImportCycle):
		return issue.ImportCycleId
	case errors.Is(err, loader.ErrNotPrefetched):
		return issue.ModuleNotPrefetchedId
	case errors.Is(err, runtime.ErrContractViolation):
		return issue.ContractViolationId
	case errors.Is(err, transpile.ErrTranspile):
		return issue.TranspileFailedId
	case errors.Is(err, runtime.ErrExecution):
		return issue.ModuleExecutionFailedId
	case errors.Is(err, runtime.ErrExecutorNotFound):
		return issue.ExecutorUnavailableId
	case errors.Is(err, config.ErrInvalidConfig):
		return issue.ConfigLoadFailedId
	case errors.Is(err, devpeer.ErrInvalidConfig):
		return issue.DevPeerStartFailedId
	}
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return issue.HookFetchFailedId
	}
	return 0
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their own format; verbose mode shows the full chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// describeFailure renders the phase, message and, in verbose mode, the source
// snippet around a failing line.
func describeFailure(err error, verbose bool) string {
	msg := fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))

	var pe *loader.PhaseError
	if errors.As(err, &pe) {
		msg = fmt.Sprintf("\n%s %s %s\n  %s\n",
			ErrorStyle.Render("Error:"),
			SubtitleStyle.Render("phase "+string(pe.Phase)),
			PathStyle.Render(pe.Key.String()),
			formatErrorForDisplay(pe.Err, verbose))
	}

	if !verbose {
		return msg
	}
	var ee *runtime.ExecutionError
	if errors.As(err, &ee) {
		if snippet := ee.Snippet(3); snippet != "" {
			msg += snippetStyle.Render(snippet) + "\n"
		}
	}
	var te *transpile.TranspileError
	if errors.As(err, &te) {
		for _, m := range te.Messages {
			msg += "  " + WarningStyle.Render(m) + "\n"
		}
	}
	return msg
}

// renderServiceError prints the styled message, or a plain one, followed by
// the issue page when one applies.
func renderServiceError(stderr io.Writer, err error, verbose bool) {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = newServiceError(err, classifyError(err), "")
	}
	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	} else {
		fmt.Fprint(stderr, describeFailure(svcErr.Err, verbose))
	}

	id := svcErr.IssueID
	if id == 0 {
		id = classifyError(svcErr.Err)
	}
	if id == 0 {
		return
	}
	if entry := issue.Get(id); entry != nil {
		rendered, renderErr := entry.Render(glamourStyle())
		if renderErr != nil {
			fmt.Fprintln(stderr, WarningStyle.Render("failed to render issue page: "+renderErr.Error()))
			return
		}
		fmt.Fprint(stderr, rendered)
	}
}

// glamourStyle picks a markdown style. NO_COLOR and non-interactive runs get
// the plain style so output stays readable in logs.
func glamourStyle() string {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("RELAYHOOK_PLAIN") != "" {
		return "notty"
	}
	return "dark"
}

// fail renders err and converts it into an exit status for fang.
func (a *App) fail(err error) error {
	renderServiceError(a.stderr, err, a.flags.verbose)
	return &ExitError{Code: exitCodeFor(err), Err: err}
}
