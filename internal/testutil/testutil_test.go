// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stopFunc func() error

func (f stopFunc) Stop() error { return f() }

func TestWriteTree(t *testing.T) {
	t.Parallel()
	dir := WriteTree(t, map[string]string{
		"hooks/client/a.js": "a",
		"top.ts":            "top",
	})
	for name, want := range map[string]string{"hooks/client/a.js": "a", "top.ts": "top"} {
		got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestStopOnCleanup(t *testing.T) {
	t.Parallel()
	stopped := 0
	t.Run("inner", func(t *testing.T) {
		StopOnCleanup(t, stopFunc(func() error { stopped++; return errors.New("already closed") }))
	})
	if stopped != 1 {
		t.Errorf("Stop called %d times, want 1", stopped)
	}
}
