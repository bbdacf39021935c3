package api

import (
	"context"
	"net"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/browser"

	"serverhub/internal/app"
	"serverhub/internal/config"
)

// Serve runs the web backend until ctx is cancelled. With open set, the
// dashboard is launched in the default browser.
func Serve(ctx context.Context, cfg *config.Config, logger log.Logger, open bool) error {
	container, err := app.New(cfg, logger, app.WithHub())
	if err != nil {
		return err
	}
	defer container.Close()

	container.Start(ctx)

	if open {
		url := LocalURL(cfg.ListenAddr)
		if err := browser.OpenURL(url); err != nil {
			level.Warn(logger).Log("msg", "could not open browser", "url", url, "err", err)
		}
	}

	return NewAPIServer(container).Start(ctx, cfg.ListenAddr)
}

// LocalURL turns a listen address into a URL a local browser can open.
func LocalURL(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "http://" + listenAddr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
