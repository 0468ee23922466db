package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/finsync-app/finsync/internal/buildinfo"
	"github.com/finsync-app/finsync/internal/cli"
	"github.com/finsync-app/finsync/internal/config"
	"github.com/finsync-app/finsync/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg := config.LoadConfig()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	ctx := context.Background()
	app, err := cli.NewApp(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to start", "error", err.Error())
		os.Exit(1)
	}

	app.Run(ctx)
}
