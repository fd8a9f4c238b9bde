package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jonesleonard/upscaler/internal/api/shared"
	"github.com/jonesleonard/upscaler/internal/platform/logger"
	"github.com/jonesleonard/upscaler/internal/service"
)

// WebhookProcessor is the webhook service surface the handler depends on.
type WebhookProcessor interface {
	Process(
		ctx context.Context,
		callbackToken string,
		payload service.WebhookPayload,
	) (*service.WebhookResult, error)
}

// WebhookHandler serves the inbound job-status callback endpoint.
type WebhookHandler struct {
	processor WebhookProcessor
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
	}
}

// HandleWebhook handles POST /webhook/{callbackToken}.
//
// Status codes are chosen for the sender's retry logic: 200 acknowledges a
// delivery that needs no retry (processed, duplicate, or unrecognized
// status), 410 tells it the task token is gone for good, and 5xx invites a
// retry of a transiently failed resume.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	callbackToken := chi.URLParam(r, "callbackToken")
	if callbackToken == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing callback token")
		return
	}

	var payload service.WebhookPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	result, err := h.processor.Process(r.Context(), callbackToken, payload)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	switch result.Outcome {
	case service.OutcomeResumedSuccess, service.OutcomeResumedFailure:
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
			"message": "Webhook processed",
			"job_id":  result.JobID,
			"status":  string(result.Status),
		})

	case service.OutcomeAlreadyProcessed:
		body := map[string]any{
			"message": "Already processed",
			"job_id":  result.JobID,
		}
		if result.CompletedAt != nil {
			body["completed_at"] = result.CompletedAt
		}
		shared.RespondWithJSON(w, r, http.StatusOK, body)

	case service.OutcomeIgnoredUnknownStatus:
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("Ignored unexpected status: %s", result.Status),
			"job_id":  result.JobID,
		})

	case service.OutcomeStaleTaskToken:
		shared.RespondWithError(w, r, http.StatusGone, "Task token expired")

	case service.OutcomeInvalidTaskToken:
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task token invalid")

	default:
		log.Error("unhandled webhook outcome",
			"outcome", int(result.Outcome),
			"job_id", result.JobID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
