// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relayhook",
		Short: "Load and run hooks from distributed repository peers",
		Long: TitleStyle.Render("relayhook") + SubtitleStyle.Render(" - load and run hooks from repository peers") + `

relayhook fetches hook modules from a peer, transpiles JSX and TypeScript on
the fly, resolves their imports against the same peer and executes the hook's
default export with an execution context.

` + SubtitleStyle.Render("Examples:") + `
  relayhook run /hooks/client/get-client.jsx    Run a hook from the configured peer
  relayhook serve ./peer                        Serve local hooks as a peer
  relayhook resolve ./b.mjs --from /hooks/a.mjs Show how a specifier resolves
  relayhook issue html-response                 Explain a failure`,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/relayhook/config.cue)")
	rootCmd.PersistentFlags().StringVar(&app.flags.logLevel, "log-level", "", "log level: debug, info, warn or error (default log.level)")

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)
	rootCmd.AddCommand(
		newRunCommand(app),
		newResolveCommand(app),
		newTranspileCommand(app),
		newServeCommand(app),
		newConfigCommand(app),
		newIssueCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

