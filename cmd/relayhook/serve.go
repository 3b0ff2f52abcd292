// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/invowk/relayhook/internal/devpeer"
	"github.com/invowk/relayhook/internal/issue"
)

func newServeCommand(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "Serve a directory of hooks as a development peer",
		Long: `Serve a directory the way a peer serves hooks.

Module sources are answered as JavaScript. Requests carrying an X-Relay-Branch
header are served from the sub-directory named after the branch when it exists.`,
		Example: `  relayhook serve ./peer --addr 127.0.0.1:8700
  relayhook run --host 127.0.0.1:8700 /hooks/client/get-client.jsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			cfg, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			logger, err := newLogger(app.stderr, cfg.Log)
			if err != nil {
				return app.fail(err)
			}

			host, port, err := splitAddr(addr)
			if err != nil {
				return app.fail(newServiceError(err, issue.DevPeerStartFailedId, ""))
			}
			srv, err := devpeer.New(devpeer.Config{
				Dir:    args[0],
				Host:   host,
				Port:   port,
				Logger: logger.WithPrefix("devpeer"),
			})
			if err != nil {
				return app.fail(newServiceError(err, issue.DevPeerStartFailedId, ""))
			}
			if err := srv.Start(cmd.Context()); err != nil {
				_ = srv.Stop()
				return app.fail(newServiceError(err, issue.DevPeerStartFailedId, ""))
			}
			fmt.Fprintf(app.stdout, "%s Serving %s at %s (Ctrl+C to stop)\n",
				SuccessStyle.Render("✓"), PathStyle.Render(args[0]), PathStyle.Render("http://"+srv.Addr()))

			var serveErr error
			select {
			case <-cmd.Context().Done():
			case serveErr = <-srv.Err():
			}
			if err := srv.Stop(); err != nil && serveErr == nil {
				serveErr = err
			}
			if serveErr != nil {
				return app.fail(newServiceError(serveErr, issue.DevPeerStartFailedId, ""))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", net.JoinHostPort(devpeer.DefaultHost, "8700"), "host:port to listen on (port 0 picks a free port)")
	return cmd
}

func splitAddr(addr string) (string, devpeer.Port, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --addr %q: port must be a number", addr)
	}
	return host, devpeer.Port(port), nil
}
