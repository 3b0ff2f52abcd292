// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// They cover the hot paths of a hook load:
//   - specifier resolution
//   - JSX/TypeScript detection, transpiling and module-format normalization
//   - cold loads (fetch through exec) and cached re-executions, on both executors
//
// To generate a PGO profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
