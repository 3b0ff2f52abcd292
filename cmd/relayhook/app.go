// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/invowk/relayhook/internal/config"
	"github.com/invowk/relayhook/internal/issue"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and reaches configuration and output through it.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
		flags  rootFlagValues
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// rootFlagValues holds the persistent flags shared by every command.
	rootFlagValues struct {
		configPath string
		verbose    bool
		logLevel   string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
}

// loadConfig loads configuration honoring --config and applies flag overrides.
func (a *App) loadConfig(ctx context.Context) (*config.Config, string, error) {
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		return nil, "", newServiceError(err, issue.ConfigLoadFailedId, "")
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = config.LogLevel(a.flags.logLevel)
		if ok, errs := cfg.Log.Level.IsValid(); !ok {
			return nil, "", newServiceError(errs[0], issue.ConfigLoadFailedId, "")
		}
	}
	if a.flags.verbose {
		cfg.UI.Verbose = true
	}
	return cfg, path, nil
}

// newLogger builds the CLI logger from the log settings. Output goes to w so
// it never mixes with results on stdout.
func newLogger(w io.Writer, lc config.LogConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(string(lc.Level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Formatter:       log.TextFormatter,
	}
	switch lc.Format {
	case config.LogFormatJSON:
		opts.Formatter = log.JSONFormatter
	case config.LogFormatLogfmt:
		opts.Formatter = log.LogfmtFormatter
	}
	return log.NewWithOptions(w, opts), nil
}
