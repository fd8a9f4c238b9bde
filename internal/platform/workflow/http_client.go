package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesleonard/upscaler/internal/platform/logger"
)

// maxErrorBodyBytes caps how much of an engine error body is retained.
const maxErrorBodyBytes = 4096

// Engine error codes on resume rejections.
const (
	codeTaskTimedOut     = "TASK_TIMED_OUT"
	codeInvalidTaskToken = "INVALID_TASK_TOKEN"
)

// HTTPResumer is the HTTP implementation of Resumer against the engine's
// callback API.
type HTTPResumer struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPResumer creates an HTTPResumer for the engine at baseURL with the
// given per-call timeout.
func NewHTTPResumer(baseURL string, timeout time.Duration) *HTTPResumer {
	return &HTTPResumer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ Resumer = (*HTTPResumer)(nil)

// resumeSuccessRequest is the wire shape for a success redemption.
type resumeSuccessRequest struct {
	TaskToken string         `json:"task_token"`
	Output    map[string]any `json:"output"`
}

// resumeFailureRequest is the wire shape for a failure redemption.
type resumeFailureRequest struct {
	TaskToken string `json:"task_token"`
	Error     string `json:"error"`
	Cause     string `json:"cause"`
}

// errorResponse is the engine's rejection body.
type errorResponse struct {
	Code string `json:"code"`
}

// ResumeSuccess redeems the task token with a success output.
func (r *HTTPResumer) ResumeSuccess(
	ctx context.Context,
	taskToken string,
	output map[string]any,
) error {
	return r.post(ctx, "/tasks/success", resumeSuccessRequest{
		TaskToken: taskToken,
		Output:    output,
	})
}

// ResumeFailure redeems the task token with a failure signal.
func (r *HTTPResumer) ResumeFailure(
	ctx context.Context,
	taskToken string,
	errorCode, cause string,
) error {
	return r.post(ctx, "/tasks/failure", resumeFailureRequest{
		TaskToken: taskToken,
		Error:     errorCode,
		Cause:     cause,
	})
}

func (r *HTTPResumer) post(ctx context.Context, path string, payload any) error {
	log := logger.FromContext(ctx)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal resume request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build resume request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("workflow resume call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if readErr != nil {
		return fmt.Errorf("workflow resume rejected with status %d", resp.StatusCode)
	}

	var parsed errorResponse
	_ = json.Unmarshal(respBody, &parsed)

	switch {
	case parsed.Code == codeTaskTimedOut || resp.StatusCode == http.StatusGone:
		return ErrTaskTokenTimedOut
	case parsed.Code == codeInvalidTaskToken || resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusNotFound:
		return ErrTaskTokenInvalid
	default:
		log.Error("workflow resume rejected",
			"status_code", resp.StatusCode,
			"path", path)
		return fmt.Errorf("workflow resume rejected: status %d: %s", resp.StatusCode, respBody)
	}
}
