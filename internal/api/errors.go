package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonesleonard/upscaler/internal/platform/runpod"
	"github.com/jonesleonard/upscaler/internal/service"
	"github.com/jonesleonard/upscaler/internal/service/auth"
	"github.com/jonesleonard/upscaler/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	var missingField *service.MissingFieldError
	var submission *runpod.SubmissionError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Bad request errors
	case errors.As(err, &missingField),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Not found errors
	case errors.Is(err, store.ErrCallbackNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Upstream compute service rejected or failed the submission
	case errors.As(err, &submission):
		return http.StatusBadGateway

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the error.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var missingField *service.MissingFieldError
	var submission *runpod.SubmissionError
	var persistence *service.PersistenceError

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.As(err, &missingField):
		return fmt.Sprintf("Missing required field: %s", missingField.Field)

	case errors.Is(err, store.ErrCallbackNotFound):
		return "Unknown callback token"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	case errors.As(err, &submission):
		return "Upstream job submission failed"

	case errors.As(err, &persistence):
		return "Failed to persist job state"

	default:
		return "An unexpected error occurred"
	}
}
