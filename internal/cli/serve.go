package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/vmwatch/internal/api"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/ui"
)

func newServeCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve fleet telemetry, Docker operations and alerts over HTTP.

The process keeps the metrics cache and the SSH connection pool warm
between requests. SIGINT or SIGTERM shuts it down gracefully.

Examples:
  vmw serve
  vmw serve --addr 127.0.0.1:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			srv := api.New(a.monitor, a.engine,
				api.WithThresholds(a.cfg.Thresholds),
				api.WithSink(a.sink),
				api.WithVersion(version))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !g.jsonOut {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s vmwatch %s listening on %s\n",
					ui.InfoStyle().Render(ui.SymbolBullet), formatVersion(version), addr)
			}
			return serve(ctx, srv, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

func serve(ctx context.Context, srv *api.Server, addr string) error {
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("HTTP server on %s stopped", addr),
			"Check that the port is free, or pick another with --addr")
	}
	return nil
}
