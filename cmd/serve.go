package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/Nathanim1919/deepen-backend/db"
	"github.com/Nathanim1919/deepen-backend/internal/app"
	"github.com/Nathanim1919/deepen-backend/internal/config"
)

// runServe initializes the application and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}
	cfg.ListenAddr = addr

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("closing application", "error", err)
		}
	}()

	return a.Run(ctx)
}

// runMigrate applies pending migrations without starting the server.
// Useful for deploy pipelines that migrate before rolling instances.
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("migrations applied")
	return nil
}
