package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"camrent/storefront/internal/app"
	"camrent/storefront/internal/config"
	"camrent/storefront/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(observability.NewLogger("info"), "load config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		fatal(observability.NewLogger(cfg.LogLevel), "create app", err)
	}

	if err := a.Run(ctx); err != nil {
		fatal(observability.NewLogger(cfg.LogLevel), "run app", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
