// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is a user-facing error: what relayhook was doing, on
	// which hook, path or peer, what to try next and, when one applies, the
	// catalog page that explains the failure class.
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("load hook").
	//		WithResource("/hooks/client/get-client.jsx").
	//		WithSuggestion("Run 'relayhook resolve get-client.jsx' to check the path").
	//		WithIssue(issue.HookFetchFailedId).
	//		Wrap(err).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "load hook" or "load configuration".
		Operation string
		// Resource names the hook path, file or peer involved. Optional.
		Resource string
		// Suggestions are remediation hints, most useful first. Optional.
		Suggestions []string
		// Issue links to the catalog page for this failure class; zero means none.
		Issue Id
		// Cause is the underlying error. Optional.
		Cause error
	}

	// ErrorContext builds an ActionableError incrementally, so call sites can
	// set the operation early and attach the cause where it happens.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		issue       Id
		cause       error
	}
)

// NewErrorContext creates an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// IssueOf returns the catalog page attached to the first ActionableError in
// err's chain that carries one, or zero.
func IssueOf(err error) Id {
	for err != nil {
		var ae *ActionableError
		if !errors.As(err, &ae) {
			return 0
		}
		if ae.Issue != 0 {
			return ae.Issue
		}
		err = ae.Cause
	}
	return 0
}

// Error returns "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	var msg strings.Builder
	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap returns the cause for errors.Is/As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the message for the terminal: the error line, one bullet per
// suggestion, a pointer to the issue page and, when verbose, the numbered
// cause chain.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, s := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(s)
		}
	}

	if page := Get(e.Issue); page != nil {
		fmt.Fprintf(&msg, "\n\nSee 'relayhook issue %s' for details.", page.Name())
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		depth := 1
		for err := e.Cause; err != nil; err = errors.Unwrap(err) {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			depth++
		}
	}
	return msg.String()
}

// HasSuggestions reports whether any suggestion is attached.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// WithOperation sets the operation, a verb phrase like "load hook".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the hook path, file or peer involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion appends one suggestion.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithSuggestions appends several suggestions.
func (c *ErrorContext) WithSuggestions(sugs ...string) *ErrorContext {
	c.suggestions = append(c.suggestions, sugs...)
	return c
}

// WithIssue links the error to a catalog page.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.issue = id
	return c
}

// Wrap sets the underlying cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build returns the ActionableError, or nil when no operation was set.
// Suggestions are copied so the context can keep being extended.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}
	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: append([]string(nil), c.suggestions...),
		Issue:       c.issue,
		Cause:       c.cause,
	}
}

// BuildError is Build typed as error, nil without an operation, for use in
// return statements.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
