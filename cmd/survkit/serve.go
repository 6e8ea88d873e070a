package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rushteam/survkit/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP prediction server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.close()

		return server.New(a.predictor, cfg.Server, cfg.Batch.MaxSize).ListenAndServe(ctx)
	},
}
