package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesleonard/upscaler/internal/domain"
	"github.com/jonesleonard/upscaler/internal/platform/logger"
	"github.com/jonesleonard/upscaler/internal/platform/runpod"
	"github.com/jonesleonard/upscaler/internal/platform/workflow"
	"github.com/jonesleonard/upscaler/internal/store"
)

// WebhookPayload is the canonical shape of an inbound job-status callback.
type WebhookPayload struct {
	ID     string           `json:"id"`
	Status runpod.JobStatus `json:"status"`
	Output map[string]any   `json:"output,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// WebhookOutcome classifies what a processed delivery did.
type WebhookOutcome int

const (
	// OutcomeResumedSuccess: the workflow was resumed with success and the
	// record transitioned to COMPLETED.
	OutcomeResumedSuccess WebhookOutcome = iota

	// OutcomeResumedFailure: the workflow was resumed with failure and the
	// record transitioned to FAILED.
	OutcomeResumedFailure

	// OutcomeAlreadyProcessed: the record was already terminal; the delivery
	// is a duplicate and produced no side effects.
	OutcomeAlreadyProcessed

	// OutcomeIgnoredUnknownStatus: the external status is outside the known
	// vocabulary; acknowledged without any state change so the sender stops
	// retrying.
	OutcomeIgnoredUnknownStatus

	// OutcomeStaleTaskToken: the engine rejected the resume because the task
	// token had expired or was already consumed. The record was still marked
	// terminal to stop retry storms.
	OutcomeStaleTaskToken

	// OutcomeInvalidTaskToken: the engine rejected the task token as
	// malformed or unknown. The record was marked FAILED.
	OutcomeInvalidTaskToken
)

// WebhookResult reports the outcome of one delivery.
type WebhookResult struct {
	Outcome     WebhookOutcome
	JobID       string
	Status      runpod.JobStatus
	CompletedAt *time.Time // original completion time on duplicate deliveries
}

// WebhookService resolves inbound callbacks to correlation records and
// resumes the parked workflow execution exactly once per record.
type WebhookService struct {
	callbacks store.CallbackStore
	resumer   workflow.Resumer
}

// NewWebhookService creates a WebhookService.
func NewWebhookService(callbacks store.CallbackStore, resumer workflow.Resumer) *WebhookService {
	return &WebhookService{
		callbacks: callbacks,
		resumer:   resumer,
	}
}

// Process handles one webhook delivery for the given callback token.
//
// The at-most-once resume guarantee is layered: the status check here skips
// records already terminal; the conditional terminal write in the store
// loses gracefully when a concurrent duplicate won; and an engine-side
// rejection of an already-consumed task token is absorbed as
// OutcomeStaleTaskToken rather than propagated as a failure.
//
// Returns store.ErrCallbackNotFound when no live record matches the token.
func (s *WebhookService) Process(
	ctx context.Context,
	callbackToken string,
	payload WebhookPayload,
) (*WebhookResult, error) {
	log := logger.FromContext(ctx)

	record, err := s.callbacks.GetByToken(ctx, callbackToken)
	if err != nil {
		return nil, err
	}

	// Idempotent replay: duplicate deliveries acknowledge without touching
	// the workflow engine or the record.
	if record.Status.IsTerminal() {
		log.Info("callback already processed",
			"job_id", record.JobID,
			"status", record.Status)
		return &WebhookResult{
			Outcome:     OutcomeAlreadyProcessed,
			JobID:       record.JobID,
			Status:      payload.Status,
			CompletedAt: record.CompletedAt,
		}, nil
	}

	jobID := payload.ID
	if jobID == "" {
		jobID = record.JobID
	}

	switch payload.Status.Classify() {
	case runpod.ClassSuccess:
		return s.processSuccess(ctx, record, jobID, payload)
	case runpod.ClassFailure:
		return s.processFailure(ctx, record, jobID, payload)
	default:
		// Acknowledge without acting so the external service stops retrying;
		// the record stays PENDING for a later recognizable delivery.
		log.Warn("ignoring unrecognized job status",
			"job_id", jobID,
			"status", string(payload.Status))
		return &WebhookResult{
			Outcome: OutcomeIgnoredUnknownStatus,
			JobID:   jobID,
			Status:  payload.Status,
		}, nil
	}
}

// processSuccess resumes the workflow with the job's output and transitions
// the record to COMPLETED.
func (s *WebhookService) processSuccess(
	ctx context.Context,
	record *domain.CallbackRecord,
	jobID string,
	payload WebhookPayload,
) (*WebhookResult, error) {
	log := logger.FromContext(ctx)

	output := map[string]any{
		"job_id":           jobID,
		"status":           string(payload.Status),
		"callback_token":   record.CallbackToken,
		"exec_id":          record.ExecID,
		"segment_filename": record.SegmentFilename,
		"output":           payload.Output,
	}

	err := s.resumer.ResumeSuccess(ctx, record.TaskToken, output)
	switch {
	case err == nil:
		result := map[string]any{
			"job_id":        jobID,
			"runpod_status": string(payload.Status),
			"output":        payload.Output,
		}
		if err := s.complete(ctx, record, domain.CallbackStatusCompleted, result); err != nil {
			return nil, err
		}
		log.Info("workflow resumed with success", "job_id", jobID)
		return &WebhookResult{
			Outcome: OutcomeResumedSuccess,
			JobID:   jobID,
			Status:  payload.Status,
		}, nil

	case errors.Is(err, workflow.ErrTaskTokenTimedOut):
		// The execution is no longer waiting. Mark terminal anyway so
		// webhook retries stop here.
		log.Error("task token expired on success resume", "job_id", jobID)
		if err := s.complete(ctx, record, domain.CallbackStatusCompleted, map[string]any{
			"job_id": jobID,
			"error":  "task token expired",
		}); err != nil {
			return nil, err
		}
		return &WebhookResult{
			Outcome: OutcomeStaleTaskToken,
			JobID:   jobID,
			Status:  payload.Status,
		}, nil

	case errors.Is(err, workflow.ErrTaskTokenInvalid):
		log.Error("invalid task token on success resume", "job_id", jobID)
		if err := s.complete(ctx, record, domain.CallbackStatusFailed, map[string]any{
			"job_id": jobID,
			"error":  "invalid task token",
		}); err != nil {
			return nil, err
		}
		return &WebhookResult{
			Outcome: OutcomeInvalidTaskToken,
			JobID:   jobID,
			Status:  payload.Status,
		}, nil

	default:
		// Transient engine failure: leave the record PENDING so the
		// external service's retry can attempt the resume again.
		return nil, fmt.Errorf("failed to resume workflow with success: %w", err)
	}
}

// processFailure resumes the workflow with a failure signal derived from the
// external status and transitions the record to FAILED.
func (s *WebhookService) processFailure(
	ctx context.Context,
	record *domain.CallbackRecord,
	jobID string,
	payload WebhookPayload,
) (*WebhookResult, error) {
	log := logger.FromContext(ctx)

	cause := payload.Error
	if cause == "" {
		cause = fmt.Sprintf("RunPod job %s", payload.Status)
	}
	errorCode := payload.Status.ErrorCode()

	err := s.resumer.ResumeFailure(ctx, record.TaskToken, errorCode, cause)
	switch {
	case err == nil:
		result := map[string]any{
			"job_id":        jobID,
			"runpod_status": string(payload.Status),
			"error":         cause,
		}
		if err := s.complete(ctx, record, domain.CallbackStatusFailed, result); err != nil {
			return nil, err
		}
		log.Info("workflow resumed with failure",
			"job_id", jobID,
			"error_code", errorCode)
		return &WebhookResult{
			Outcome: OutcomeResumedFailure,
			JobID:   jobID,
			Status:  payload.Status,
		}, nil

	case errors.Is(err, workflow.ErrTaskTokenTimedOut):
		log.Error("task token expired on failure resume", "job_id", jobID)
		if err := s.complete(ctx, record, domain.CallbackStatusFailed, map[string]any{
			"job_id": jobID,
			"error":  "task token expired",
		}); err != nil {
			return nil, err
		}
		return &WebhookResult{
			Outcome: OutcomeStaleTaskToken,
			JobID:   jobID,
			Status:  payload.Status,
		}, nil

	case errors.Is(err, workflow.ErrTaskTokenInvalid):
		log.Error("invalid task token on failure resume", "job_id", jobID)
		if err := s.complete(ctx, record, domain.CallbackStatusFailed, map[string]any{
			"job_id": jobID,
			"error":  "invalid task token",
		}); err != nil {
			return nil, err
		}
		return &WebhookResult{
			Outcome: OutcomeInvalidTaskToken,
			JobID:   jobID,
			Status:  payload.Status,
		}, nil

	default:
		return nil, fmt.Errorf("failed to resume workflow with failure: %w", err)
	}
}

// complete applies the conditional terminal write. Losing the condition to a
// concurrent duplicate is benign: the engine's one-shot token already
// guaranteed only one of the two resumes took effect.
func (s *WebhookService) complete(
	ctx context.Context,
	record *domain.CallbackRecord,
	status domain.CallbackStatus,
	result map[string]any,
) error {
	err := s.callbacks.Complete(ctx, record.CallbackToken, status, result)
	if err == nil {
		return nil
	}

	if errors.Is(err, store.ErrAlreadyTerminal) {
		logger.FromContext(ctx).Warn("concurrent delivery already finalized record",
			"job_id", record.JobID)
		return nil
	}

	return fmt.Errorf("failed to finalize callback record: %w", err)
}
