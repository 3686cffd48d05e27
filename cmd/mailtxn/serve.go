package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/mailtxn/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction pipeline over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.ListenAddr
			}

			pipeline, err := a.pipeline()
			if err != nil {
				return a.fail("building pipeline", err)
			}

			if err := server.New(pipeline, a.logger).Listen(ctx, addr); err != nil {
				return a.fail("server error", err)
			}
			a.logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default MAILTXN_LISTEN_ADDR)")
	return cmd
}
