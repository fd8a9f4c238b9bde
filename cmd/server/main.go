// Package main implements the entry point for the upscaler coordination
// server, which submits GPU upscale jobs to an external compute service and
// resumes parked workflow executions when the jobs call back.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/jonesleonard/upscaler/internal/config"
	"github.com/jonesleonard/upscaler/internal/platform/logger"
)

func main() {
	ctx := context.Background()

	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	db, err := openDatabase(ctx, cfg.Database, appLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := runMigrations(db, appLogger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	app, err := newApplication(cfg, appLogger, db)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"webhook_base_url", cfg.Webhook.BaseURL,
		"record_ttl", cfg.Webhook.RecordTTL,
		"sweep_schedule", cfg.Sweeper.Schedule)

	return cfg, appLogger, nil
}
