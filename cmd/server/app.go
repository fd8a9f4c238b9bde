package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jonesleonard/upscaler/internal/config"
	"github.com/jonesleonard/upscaler/internal/platform/postgres"
	"github.com/jonesleonard/upscaler/internal/platform/runpod"
	"github.com/jonesleonard/upscaler/internal/platform/secrets"
	"github.com/jonesleonard/upscaler/internal/platform/workflow"
	"github.com/jonesleonard/upscaler/internal/service"
	"github.com/jonesleonard/upscaler/internal/service/auth"
	"github.com/jonesleonard/upscaler/internal/store"
	"github.com/jonesleonard/upscaler/internal/task"
)

// application holds the shared application dependencies so construction and
// shutdown live in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	callbackStore store.CallbackStore

	tokenValidator    auth.ServiceTokenValidator
	submissionService *service.SubmissionService
	webhookService    *service.WebhookService

	sweeper *task.Sweeper
}

// newApplication wires every dependency from configuration. The sweeper is
// created but not started; Run owns its lifecycle.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.tokenValidator, err = auth.NewServiceTokenValidator(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize service token validator: %w", err)
	}

	app.callbackStore = postgres.NewCallbackStore(db)

	apiKeys := secrets.NewCachedProvider(secrets.NewFileProvider(cfg.RunPod.APIKeyFile))
	submitter := runpod.NewClient(apiKeys, cfg.RunPod.SubmitTimeout)

	resumer := workflow.NewHTTPResumer(cfg.Workflow.BaseURL, cfg.Workflow.ResumeTimeout)

	app.submissionService = service.NewSubmissionService(
		service.RandomTokenIssuer{},
		submitter,
		app.callbackStore,
		cfg.Webhook.BaseURL,
		cfg.Webhook.RecordTTL,
	)
	app.webhookService = service.NewWebhookService(app.callbackStore, resumer)

	app.sweeper = task.NewSweeper(app.callbackStore, cfg.Sweeper, logger)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the background sweeper and the HTTP server, blocking until
// shutdown completes.
func (app *application) Run(ctx context.Context) error {
	if err := app.sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
