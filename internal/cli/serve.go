package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-queue/internal/app"
	"github.com/iliyamo/restaurant-queue/internal/config"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var opts app.ServeOptions
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Serve(ctx, cfg, f.logger(), opts)
		},
	}
	c.Flags().BoolVar(&opts.Consumers, "consumers", true, "run the broker consumers that write the notification and usage logs")
	return c
}
