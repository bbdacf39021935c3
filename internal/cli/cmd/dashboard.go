package cmd

import (
	"context"
	"log"

	"serverhub/internal/app"
	"serverhub/internal/cli/ui"
)

func RunDashboard() {
	logger, closer, err := app.NewFileLogger(Config.LogPath)
	if err != nil {
		log.Fatalf("Error opening log file: %v", err)
	}
	defer closer.Close()

	container, err := app.New(Config, logger)
	if err != nil {
		log.Fatalf("Error starting: %v", err)
	}
	defer container.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.Start(ctx)

	updates, stopWatch := container.Store.Watch()
	defer stopWatch()

	err = ui.Run(ui.Deps{
		Dispatcher: container.Dispatcher,
		Creator:    container.Servers,
		Journal:    container.Journal,
		Confirm:    container.Confirm,
		Updates:    updates,
		Gateway:    container.Client.BaseURL(),
	})
	if err != nil {
		log.Fatalf("Error running dashboard: %v", err)
	}
}
