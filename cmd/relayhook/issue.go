// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/relayhook/internal/issue"
)

func newIssueCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "issue [name]",
		Short: "Show troubleshooting guidance for a failure",
		Long: `Show the troubleshooting page for a failure class.

Without an argument the available pages are listed. Pages are named by slug
(html-response) or number.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			if len(args) == 0 {
				fmt.Fprintln(app.stdout, TitleStyle.Render("Issues"))
				for _, is := range issue.Values() {
					fmt.Fprintf(app.stdout, "  %s  %-24s %s\n",
						SubtitleStyle.Render(fmt.Sprintf("%2d", is.Id())), PathStyle.Render(is.Name()), is.Title())
				}
				return nil
			}

			entry := issue.Lookup(args[0])
			if entry == nil {
				return app.fail(fmt.Errorf("unknown issue %q: run 'relayhook issue' for the list", args[0]))
			}
			rendered, err := entry.Render(glamourStyle())
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
}
