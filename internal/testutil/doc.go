// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by the test suites: a manually
// advanced clock for grace-period timers, directory fixtures, and cleanup of
// started servers.
package testutil
