// SPDX-License-Identifier: MPL-2.0

// Package cli drives the relayhook binary through txtar scripts.
//
// TestMain builds the binary once into bin/. Scripts run with colorless,
// error-level output and an isolated HOME, and may start an in-process dev
// peer with the "peer" command to test remote loading over HTTP.
package cli

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/invowk/relayhook/internal/devpeer"
)

var binaryPath string

func TestMain(m *testing.M) {
	root, err := moduleRoot()
	if err != nil {
		panic(err)
	}

	name := "relayhook"
	if goruntime.GOOS == "windows" {
		name += ".exe"
	}
	binaryPath = filepath.Join(root, "bin", name)

	build := exec.CommandContext(context.Background(), "go", "build", "-o", binaryPath, ".")
	build.Dir = root
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		panic("build relayhook: " + err.Error())
	}

	os.Exit(m.Run())
}

// moduleRoot walks up from the working directory to the directory holding go.mod.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found above the test directory")
		}
		dir = parent
	}
}

func TestCLI(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Setup: func(env *testscript.Env) error {
			env.Setenv("PATH", filepath.Dir(binaryPath)+string(os.PathListSeparator)+env.Getenv("PATH"))
			env.Setenv("XDG_CONFIG_HOME", filepath.Join(env.WorkDir, ".config"))
			env.Setenv("HOME", env.WorkDir)
			env.Setenv("NO_COLOR", "1")
			env.Setenv("RELAYHOOK_PLAIN", "1")
			env.Setenv("RELAYHOOK_LOG_LEVEL", "error")
			return nil
		},
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"peer": cmdPeer,
		},
		ContinueOnError: true,
	})
}

// cmdPeer serves a script directory on a random loopback port and exports its
// address as $PEER. The peer stops when the script ends.
//
//	peer <dir>
func cmdPeer(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("unsupported: ! peer")
	}
	if len(args) != 1 {
		ts.Fatalf("usage: peer <dir>")
	}
	srv, err := devpeer.New(devpeer.Config{Dir: ts.MkAbs(args[0]), Host: "127.0.0.1"})
	ts.Check(err)
	ts.Check(srv.Start(context.Background()))
	ts.Defer(func() {
		if err := srv.Stop(); err != nil {
			ts.Logf("stop peer: %v", err)
		}
	})
	ts.Setenv("PEER", srv.Addr())
}
