// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/relayhook/internal/config"
)

// newConfigCommand creates the `relayhook config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage relayhook configuration",
		Long: `Manage relayhook configuration.

Configuration is read from the file named with --config, else from
  - Linux: ~/.config/relayhook/config.cue
  - macOS: ~/Library/Application Support/relayhook/config.cue
  - Windows: %APPDATA%\relayhook\config.cue
else from ./config.cue. RELAYHOOK_<SECTION>_<KEY> environment variables
override individual keys.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			cfg, path, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			showConfig(app.stdout, cfg, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			path, found, err := config.FilePath(config.LoadOptions{ConfigFilePath: app.flags.configPath})
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprint(app.stdout, path)
			if !found {
				fmt.Fprint(app.stdout, " ", SubtitleStyle.Render("(not created)"))
			}
			fmt.Fprintln(app.stdout)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			path, _, err := config.FilePath(config.LoadOptions{ConfigFilePath: app.flags.configPath})
			if err != nil {
				return app.fail(err)
			}
			created, err := config.CreateDefaultConfig(path)
			if err != nil {
				return app.fail(err)
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	var format string
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as CUE or TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			cfg, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			switch format {
			case "cue":
				fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			case "toml":
				data, err := config.EncodeTOML(cfg)
				if err != nil {
					return app.fail(err)
				}
				_, _ = app.stdout.Write(data)
			default:
				return app.fail(errors.New(`--format must be "cue" or "toml"`))
			}
			return nil
		},
	}
	dumpCmd.Flags().StringVar(&format, "format", "cue", "output format: cue or toml")
	cfgCmd.AddCommand(dumpCmd)

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, path string) {
	key := PathStyle.Render
	val := SuccessStyle.Render

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", key("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", key("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	section := func(name string, pairs ...string) {
		fmt.Fprintf(w, "\n%s:\n", key(name))
		for i := 0; i+1 < len(pairs); i += 2 {
			v := pairs[i+1]
			if v == "" {
				v = SubtitleStyle.Render("(unset)")
			} else {
				v = val(v)
			}
			fmt.Fprintf(w, "  %s: %s\n", pairs[i], v)
		}
	}

	section("peer",
		"protocol", cfg.Peer.Protocol.String(),
		"host", cfg.Peer.Host,
		"branch", cfg.Peer.Branch,
		"headers", formatMap(cfg.Peer.Headers),
		"timeout", cfg.Peer.Timeout.String())
	section("resolver",
		"root", cfg.Resolver.Root.String(),
		"default_base", cfg.Resolver.DefaultBase.String(),
		"module_dir", cfg.Resolver.ModuleDir.String(),
		"aliases", formatMap(cfg.Resolver.Aliases))
	section("loader",
		"executor", cfg.Loader.Executor.String(),
		"lenient_transpile", fmt.Sprint(cfg.Loader.LenientTranspile),
		"cache_max_entries", fmt.Sprint(cfg.Loader.CacheMaxEntries),
		"dispose_grace", cfg.Loader.DisposeGrace.String(),
		"host_modules", strings.Join(cfg.Loader.HostModules, ", "))
	section("transpiler",
		"target", cfg.Transpiler.Target,
		"jsx_factory", cfg.Transpiler.JSXFactory,
		"jsx_fragment", cfg.Transpiler.JSXFragment)
	section("log",
		"level", cfg.Log.Level.String(),
		"format", cfg.Log.Format.String())
	section("telemetry",
		"otlp_endpoint", cfg.Telemetry.OTLPEndpoint,
		"service_name", cfg.Telemetry.ServiceName)
	section("ui",
		"color_scheme", cfg.UI.ColorScheme.String(),
		"verbose", fmt.Sprint(cfg.UI.Verbose))
}

func formatMap(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ", ")
}
