// SPDX-License-Identifier: MPL-2.0

// Package types defines value types shared across relayhook packages that
// carry validation but no domain dependencies.
//
// This package is a leaf dependency: it imports only the standard library.
package types
