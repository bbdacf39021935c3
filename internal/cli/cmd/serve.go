package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"serverhub/internal/api"
	"serverhub/internal/app"
)

var serveOpen bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web backend",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := app.NewLogger(os.Stderr)
		level.Info(logger).Log("msg", "starting web backend", "gateway", Config.GatewayURL, "addr", Config.ListenAddr)
		if err := api.Serve(ctx, Config, logger, serveOpen); err != nil {
			log.Fatalf("API Error: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "Open the dashboard in a browser")
	RootCmd.AddCommand(serveCmd)
}
