package service

import (
	"context"
	"strings"
	"time"

	"github.com/jonesleonard/upscaler/internal/domain"
	"github.com/jonesleonard/upscaler/internal/platform/logger"
	"github.com/jonesleonard/upscaler/internal/platform/runpod"
	"github.com/jonesleonard/upscaler/internal/store"
)

// SegmentDescriptor identifies the video segment a job operates on.
type SegmentDescriptor struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	S3URI    string `json:"s3_uri"`
}

// SubmitRequest carries everything needed to submit one upscale job on
// behalf of a parked workflow execution.
type SubmitRequest struct {
	// TaskToken is the engine's one-shot resume handle for the parked
	// execution. Stored, never interpreted.
	TaskToken string

	// ExecID identifies the workflow execution, for diagnostics and echo.
	ExecID string

	// Segment describes the input segment; its filename is required.
	Segment SegmentDescriptor

	// InputURL and OutputURL are presigned storage URLs for the job.
	InputURL  string
	OutputURL string

	// EndpointURL is the external compute endpoint to submit against.
	EndpointURL string

	// Params is the opaque upscale parameter map passed through verbatim.
	Params map[string]any
}

// SubmitResult is returned to the workflow engine on successful submission.
type SubmitResult struct {
	CallbackToken   string `json:"callback_token"`
	JobID           string `json:"job_id"`
	WebhookURL      string `json:"webhook_url"`
	SegmentFilename string `json:"segment_filename"`
	ExecID          string `json:"exec_id"`
}

// SubmissionService coordinates token issuance, external job submission,
// and correlation-record persistence as a single operation.
type SubmissionService struct {
	tokens         TokenIssuer
	submitter      runpod.Submitter
	callbacks      store.CallbackStore
	webhookBaseURL string
	recordTTL      time.Duration
}

// NewSubmissionService creates a SubmissionService. webhookBaseURL is the
// public base the callback token is joined onto; recordTTL bounds how long
// the correlation record outlives the job.
func NewSubmissionService(
	tokens TokenIssuer,
	submitter runpod.Submitter,
	callbacks store.CallbackStore,
	webhookBaseURL string,
	recordTTL time.Duration,
) *SubmissionService {
	return &SubmissionService{
		tokens:         tokens,
		submitter:      submitter,
		callbacks:      callbacks,
		webhookBaseURL: webhookBaseURL,
		recordTTL:      recordTTL,
	}
}

// Submit validates the request, issues a callback token, submits the job
// externally with the webhook URL embedded, and persists a PENDING
// correlation record.
//
// Ordering matters for the failure semantics: the record is written only
// after submission succeeds, so a failed submission leaves no state and the
// caller may retry from scratch. The inverse failure (record write after a
// successful submission) surfaces as *PersistenceError and leaves an
// orphaned external job.
func (s *SubmissionService) Submit(
	ctx context.Context,
	req SubmitRequest,
) (*SubmitResult, error) {
	log := logger.FromContext(ctx)

	if err := validateSubmitRequest(req); err != nil {
		return nil, err
	}

	callbackToken, err := s.tokens.Issue()
	if err != nil {
		return nil, err
	}

	webhookURL := joinWebhookURL(s.webhookBaseURL, callbackToken)

	jobID, err := s.submitter.Submit(ctx, runpod.SubmitInput{
		EndpointURL: req.EndpointURL,
		InputURL:    req.InputURL,
		OutputURL:   req.OutputURL,
		WebhookURL:  webhookURL,
		Params:      req.Params,
	})
	if err != nil {
		// No record exists yet; the caller retries submission from scratch.
		return nil, err
	}

	record, err := domain.NewCallbackRecord(
		callbackToken,
		req.TaskToken,
		jobID,
		req.ExecID,
		req.Segment.Filename,
		s.recordTTL,
	)
	if err != nil {
		return nil, &PersistenceError{JobID: jobID, Err: err}
	}

	if err := s.callbacks.Create(ctx, record); err != nil {
		log.Error("callback record write failed after successful submission; external job is orphaned",
			"job_id", jobID,
			"exec_id", req.ExecID,
			"error", err)
		return nil, &PersistenceError{JobID: jobID, Err: err}
	}

	log.Info("job submitted",
		"job_id", jobID,
		"exec_id", req.ExecID,
		"segment_filename", req.Segment.Filename)

	return &SubmitResult{
		CallbackToken:   callbackToken,
		JobID:           jobID,
		WebhookURL:      webhookURL,
		SegmentFilename: req.Segment.Filename,
		ExecID:          req.ExecID,
	}, nil
}

// validateSubmitRequest checks the presence of every required field,
// naming the first missing one.
func validateSubmitRequest(req SubmitRequest) error {
	switch {
	case req.TaskToken == "":
		return &MissingFieldError{Field: "task_token"}
	case req.ExecID == "":
		return &MissingFieldError{Field: "exec_id"}
	case req.Segment.Filename == "":
		return &MissingFieldError{Field: "segment.filename"}
	case req.InputURL == "":
		return &MissingFieldError{Field: "input_presigned_url"}
	case req.OutputURL == "":
		return &MissingFieldError{Field: "output_presigned_url"}
	case req.EndpointURL == "":
		return &MissingFieldError{Field: "runpod.run_endpoint"}
	default:
		return nil
	}
}

// joinWebhookURL appends the callback token as the final path segment.
func joinWebhookURL(base, token string) string {
	return strings.TrimRight(base, "/") + "/" + token
}
