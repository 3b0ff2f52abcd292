// SPDX-License-Identifier: MPL-2.0

// Package issue holds the troubleshooting catalog and the actionable errors
// that point into it.
//
// Each failure class of a hook load (fetch, transform, import, exec) has a
// Markdown page rendered with glamour; an ActionableError carries the
// operation, resource and suggestions for one occurrence and may link to
// the page that explains its class.
package issue
