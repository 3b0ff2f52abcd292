// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Stopper is implemented by servers started in tests.
type Stopper interface {
	Stop() error
}

// WriteFile writes content to path, creating parent directories.
// The test fails immediately on error.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// WriteTree creates a temporary directory holding files, keyed by
// slash-separated relative path, and returns it.
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		WriteFile(t, filepath.Join(dir, filepath.FromSlash(name)), body)
	}
	return dir
}

// StopOnCleanup stops s when the test finishes, logging rather than failing
// on error since shutdown problems during cleanup are rarely the point.
func StopOnCleanup(t testing.TB, s Stopper) {
	t.Helper()
	t.Cleanup(func() {
		if err := s.Stop(); err != nil {
			t.Logf("warning: stop returned error: %v", err)
		}
	})
}
