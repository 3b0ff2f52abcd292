// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCommand(app *App) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "resolve <specifier>...",
		Short: "Resolve import specifiers to canonical paths",
		Example: `  relayhook resolve ./b.mjs --from /hooks/client/a.mjs
  relayhook resolve ../shared/c.mjs lodash @app/util`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			cfg, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}

			r := newResolver(cfg)
			for _, spec := range args {
				res := r.Resolve(spec, from)
				line := fmt.Sprintf("%s %s %s", spec, SubtitleStyle.Render("→"), PathStyle.Render(res.Path))
				line += " " + SubtitleStyle.Render("("+string(res.Kind)+")")
				if res.Degraded {
					line += " " + WarningStyle.Render("degraded: "+res.Reason)
				}
				fmt.Fprintln(app.stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "path of the importing module (default resolver.default_base)")
	return cmd
}
