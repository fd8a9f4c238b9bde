// Package runpod implements the client for the external GPU job service.
// Only job submission is performed here; completion flows back through the
// webhook route, never by polling.
package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonesleonard/upscaler/internal/platform/logger"
	"github.com/jonesleonard/upscaler/internal/platform/secrets"
)

// maxErrorBodyBytes caps how much of an upstream error body is retained.
const maxErrorBodyBytes = 4096

// SubmissionError reports a failed job submission: the service was
// unreachable, rejected the request, or returned no job id. Submission
// failures are safe to retry from scratch because no correlation record has
// been written yet.
type SubmissionError struct {
	StatusCode int    // zero when the request never completed
	Body       string // truncated upstream response body
	Err        error  // transport error, if any
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("runpod submission failed: %v", e.Err)
	}
	return fmt.Sprintf("runpod submission rejected: status %d: %s", e.StatusCode, e.Body)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// SubmitInput carries everything a job submission needs.
type SubmitInput struct {
	// EndpointURL is the RunPod run endpoint for the target GPU endpoint,
	// e.g. https://api.runpod.ai/v2/<endpoint>/run.
	EndpointURL string

	// InputURL and OutputURL are presigned storage URLs the job reads from
	// and writes to.
	InputURL  string
	OutputURL string

	// WebhookURL is where RunPod reports completion. It embeds the callback
	// token and must be treated as a secret.
	WebhookURL string

	// Params is the opaque upscale parameter map passed through verbatim.
	Params map[string]any
}

// Submitter submits jobs to the external compute service.
type Submitter interface {
	// Submit sends the job and returns the external job id. Failures are
	// reported as *SubmissionError.
	Submit(ctx context.Context, input SubmitInput) (string, error)
}

// Client is the HTTP implementation of Submitter.
type Client struct {
	httpClient *http.Client
	apiKeys    secrets.Provider
}

// NewClient creates a Client with the given request timeout. The API key is
// resolved through the provider on every call; the provider is expected to
// cache it for the process lifetime.
func NewClient(apiKeys secrets.Provider, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKeys:    apiKeys,
	}
}

var _ Submitter = (*Client)(nil)

// submitRequest is the wire shape RunPod expects.
type submitRequest struct {
	Input   submitRequestInput `json:"input"`
	Webhook string             `json:"webhook"`
}

type submitRequestInput struct {
	InputPresignedURL  string         `json:"input_presigned_url"`
	OutputPresignedURL string         `json:"output_presigned_url"`
	Params             map[string]any `json:"params"`
}

// submitResponse is the subset of RunPod's response we consume.
type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Submit sends the job-submission request with the webhook URL embedded.
func (c *Client) Submit(ctx context.Context, input SubmitInput) (string, error) {
	log := logger.FromContext(ctx)

	apiKey, err := c.apiKeys.APIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve runpod api key: %w", err)
	}

	body, err := json.Marshal(submitRequest{
		Input: submitRequestInput{
			InputPresignedURL:  input.InputURL,
			OutputPresignedURL: input.OutputURL,
			Params:             input.Params,
		},
		Webhook: input.WebhookURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal submission request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, input.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	log.Info("submitting job to runpod", "endpoint", input.EndpointURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Only error bodies are capped; a valid response must be read whole.
		errBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if err != nil {
			return "", fmt.Errorf("failed to read submission error response: %w", err)
		}
		return "", &SubmissionError{StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read submission response: %w", err)
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &SubmissionError{
			StatusCode: resp.StatusCode,
			Body:       truncateBody(respBody),
			Err:        fmt.Errorf("invalid submission response: %w", err),
		}
	}

	if parsed.ID == "" {
		return "", &SubmissionError{
			StatusCode: resp.StatusCode,
			Body:       truncateBody(respBody),
			Err:        fmt.Errorf("no job id in runpod response"),
		}
	}

	log.Info("runpod job submitted", "job_id", parsed.ID)
	return parsed.ID, nil
}

// truncateBody caps a response body retained for error reporting.
func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return string(body)
}
