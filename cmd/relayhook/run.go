// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/relayhook/internal/config"
	"github.com/invowk/relayhook/internal/hookctx"
	"github.com/invowk/relayhook/internal/loader"
	"github.com/invowk/relayhook/internal/watch"
)

// runFlagValues holds the flags of the run command.
type runFlagValues struct {
	session  sessionOptions
	lenient  bool
	params   []string
	timeline bool
	watchDir string
}

func newRunCommand(app *App) *cobra.Command {
	flags := &runFlagValues{}
	cmd := &cobra.Command{
		Use:   "run <hook-path>",
		Short: "Load and execute a hook",
		Long: `Load a hook from the peer, execute its default export and print the result.

The hook path is resolved like an import specifier: relative paths resolve
against resolver.default_base, so "get-client.jsx" and
"/hooks/client/get-client.jsx" name the same hook.`,
		Example: `  # Run a hook from the configured peer
  relayhook run /hooks/client/get-client.jsx

  # Run against a local directory and re-run on every save
  relayhook run --dir ./peer --watch ./peer /hooks/client/get-client.jsx

  # Pass parameters and show the diagnostics timeline
  relayhook run --param id=42 --timeline get-client.jsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			if err := runHook(cmd.Context(), app, flags, args[0]); err != nil {
				return app.fail(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.session.host, "host", "", "peer host[:port] (default peer.host)")
	cmd.Flags().StringVar(&flags.session.executor, "executor", "", "module executor: function or require (default loader.executor)")
	cmd.Flags().StringVar(&flags.session.dir, "dir", "", "serve modules from this directory before asking the peer")
	cmd.Flags().StringArrayVarP(&flags.params, "param", "p", nil, "hook parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&flags.lenient, "lenient-transpile", false, "continue with the raw source when transpiling fails")
	cmd.Flags().BoolVar(&flags.timeline, "timeline", false, "print the diagnostics timeline")
	cmd.Flags().StringVar(&flags.watchDir, "watch", "", "re-run the hook whenever sources under this directory change")
	return cmd
}

func parseParams(pairs []string) (map[string]string, error) {
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", p)
		}
		params[k] = v
	}
	return params, nil
}

func runHook(ctx context.Context, app *App, flags *runFlagValues, hookPath string) error {
	cfg, _, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	if flags.lenient {
		cfg.Loader.LenientTranspile = true
	}
	params, err := parseParams(flags.params)
	if err != nil {
		return err
	}
	logger, err := newLogger(app.stderr, cfg.Log)
	if err != nil {
		return err
	}

	s, err := newSession(ctx, cfg, logger, flags.session)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	hctx := &hookctx.Context{
		Params: params,
		Helpers: hookctx.Helpers{
			Navigate: func(to string) { logger.Info("hook requested navigation", "to", to) },
			BuildPeerURL: func(p string) string {
				return s.fetcher.URL(s.loader.Host(), p)
			},
		},
	}

	showTimeline := flags.timeline || cfg.UI.Verbose
	runOnce := func(ctx context.Context) error {
		res, err := s.loader.LoadAndExecuteHook(ctx, hookPath, hctx)
		events := s.timeline.take()
		if showTimeline {
			fmt.Fprintln(app.stdout, TitleStyle.Render("Diagnostics"))
			fmt.Fprintln(app.stdout, renderTimeline(events))
		}
		if err != nil {
			return err
		}
		printResult(app, res)
		return nil
	}

	if flags.watchDir == "" {
		return runOnce(ctx)
	}
	return watchHook(ctx, app, cfg, s, flags.watchDir, runOnce)
}

func printResult(app *App, res *loader.Result) {
	status := SuccessStyle.Render("✓")
	source := "loaded"
	if res.Cached {
		source = "cached"
	}
	fmt.Fprintf(app.stdout, "%s %s %s\n", status, PathStyle.Render(res.Module.Key.String()), SubtitleStyle.Render("("+source+")"))
	fmt.Fprintln(app.stdout, renderValue(res.Value))
}

// watchHook runs the hook once, then again after every batch of source
// changes, evicting the changed modules and everything importing them.
func watchHook(ctx context.Context, app *App, cfg *config.Config, s *session, dir string, runOnce func(context.Context) error) error {
	report := func(err error) {
		if err != nil {
			renderServiceError(app.stderr, err, cfg.UI.Verbose)
		}
	}

	report(runOnce(ctx))
	fmt.Fprintf(app.stdout, "\n%s Watching %s for changes (Ctrl+C to stop)...\n\n", PathStyle.Render("→"), dir)

	w, err := watch.New(watch.Config{
		Dir:    dir,
		Logger: s.logger.WithPrefix("watch"),
		OnChange: func(ctx context.Context, changes []watch.Change) error {
			paths := make([]string, len(changes))
			for i, c := range changes {
				paths[i] = c.ModulePath
			}
			evicted := s.loader.Invalidate(paths...)
			s.logger.Debug("re-running hook", "changed", len(changes), "evicted", len(evicted))
			fmt.Fprintf(app.stdout, "%s %d change(s), %d module(s) reloaded\n", PathStyle.Render("→"), len(changes), len(evicted))
			report(runOnce(ctx))
			return nil
		},
	})
	if err != nil {
		return err
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
