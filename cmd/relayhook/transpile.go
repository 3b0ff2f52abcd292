// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invowk/relayhook/internal/transpile"
)

func newTranspileCommand(app *App) *cobra.Command {
	var normalize bool
	cmd := &cobra.Command{
		Use:   "transpile <file>",
		Short: "Transpile a hook source the way the loader does",
		Long: `Transpile a local file with the configured adapter.

JSX and TypeScript are lowered only when detected, as during a load. With
--normalize the output also goes through the module-format pass that turns
ES module syntax into the shape the executors evaluate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			cfg, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return app.fail(err)
			}
			adapter, err := newAdapter(cfg)
			if err != nil {
				return app.fail(err)
			}

			name := filepath.ToSlash(args[0])
			code := string(data)
			if transpile.Detect(code, name) {
				if code, err = adapter.Transpile(cmd.Context(), code, name); err != nil {
					return app.fail(err)
				}
			}
			if normalize {
				if code, err = transpile.Normalize(code, name, cfg.Transpiler.Target); err != nil {
					return app.fail(err)
				}
			}
			fmt.Fprint(app.stdout, code)
			return nil
		},
	}
	cmd.Flags().BoolVar(&normalize, "normalize", false, "also apply the module-format pass")
	return cmd
}
