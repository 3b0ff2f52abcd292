// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the relayhook command line interface.
//
// The CLI is a thin layer over the loader: it builds the configuration,
// logger, tracer and loader for one invocation, runs a hook against a peer,
// and renders the result, the diagnostics timeline and any failure with its
// issue page.
package cmd
