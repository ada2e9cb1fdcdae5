package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cropguard/internal/bootstrap"
	"cropguard/internal/shared/config"
	"cropguard/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	defer telemetry.Sync()

	if err := cfg.Validate(); err != nil {
		telemetry.Error("config.invalid", map[string]any{"error": err})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		telemetry.Error("bootstrap.failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer app.Close()

	if err := bootstrap.Serve(ctx, app); err != nil {
		telemetry.Error("server.error", map[string]any{"error": err})
		os.Exit(1)
	}
}
