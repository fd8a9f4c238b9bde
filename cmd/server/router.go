package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jonesleonard/upscaler/internal/api"
	apiMiddleware "github.com/jonesleonard/upscaler/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	jobHandler := api.NewJobHandler(app.submissionService)
	webhookHandler := api.NewWebhookHandler(app.webhookService)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.tokenValidator)

	// Submission API: called by the workflow engine, service-token protected.
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/jobs", jobHandler.SubmitJob)
		})
	})

	// Webhook endpoint: called by the external compute service. The callback
	// token in the path is the only credential. Requests lacking the token
	// segment reach the handler too, which rejects them with 400.
	r.Post("/webhook", webhookHandler.HandleWebhook)
	r.Post("/webhook/", webhookHandler.HandleWebhook)
	r.Post("/webhook/{callbackToken}", webhookHandler.HandleWebhook)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.db.PingContext(r.Context()); err != nil {
			app.logger.Error("Health check database ping failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
