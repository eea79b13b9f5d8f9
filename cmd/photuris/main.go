package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hisname/photuris/internal/buildinfo"
	"github.com/hisname/photuris/internal/cli"
	"github.com/hisname/photuris/internal/config"
	"github.com/hisname/photuris/internal/logging"
)

func slogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)})
	logger := logging.NewSlogLogger(slog.New(handler))

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)
}
