package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"

	"serverhub/internal/api"
	"serverhub/internal/app"
	"serverhub/internal/config"
)

func main() {
	open := flag.Bool("open", false, "open the dashboard in a browser")
	gateway := flag.String("gateway", "", "gateway base URL")
	flag.Parse()

	logger := app.NewLogger(os.Stderr)
	level.Info(logger).Log("msg", "starting serverhub web backend")

	cfg, err := config.Load()
	if err != nil {
		level.Error(logger).Log("msg", "failed to load configuration", "err", err)
		os.Exit(1)
	}
	if *gateway != "" {
		cfg.GatewayURL = *gateway
	}

	level.Info(logger).Log(
		"msg", "configuration loaded",
		"gateway", cfg.GatewayURL,
		"listen_addr", cfg.ListenAddr,
		"database", cfg.DatabasePath,
		"web_dir", cfg.WebDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.Serve(ctx, cfg, logger, *open); err != nil {
		level.Error(logger).Log("msg", "web backend stopped", "err", err)
		os.Exit(1)
	}
}
