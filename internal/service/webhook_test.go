package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesleonard/upscaler/internal/domain"
	"github.com/jonesleonard/upscaler/internal/platform/runpod"
	"github.com/jonesleonard/upscaler/internal/platform/workflow"
	"github.com/jonesleonard/upscaler/internal/store"
)

// pendingRecord returns a PENDING record for the fixed token "tok123".
func pendingRecord() *domain.CallbackRecord {
	now := time.Now().UTC()
	return &domain.CallbackRecord{
		CallbackToken:   "tok123",
		TaskToken:       "t1",
		JobID:           "j1",
		ExecID:          "e1",
		SegmentFilename: "seg_0000.mp4",
		Status:          domain.CallbackStatusPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(168 * time.Hour),
	}
}

func storeWithRecord(record *domain.CallbackRecord) *mockCallbackStore {
	return &mockCallbackStore{
		GetByTokenFn: func(ctx context.Context, callbackToken string) (*domain.CallbackRecord, error) {
			if record != nil && callbackToken == record.CallbackToken {
				return record, nil
			}
			return nil, store.ErrCallbackNotFound
		},
	}
}

func TestWebhookProcessSuccess(t *testing.T) {
	record := pendingRecord()
	callbacks := storeWithRecord(record)
	resumer := &mockResumer{}

	var completedStatus domain.CallbackStatus
	var completedResult map[string]any
	callbacks.CompleteFn = func(ctx context.Context, token string, status domain.CallbackStatus, result map[string]any) error {
		assert.Equal(t, "tok123", token)
		completedStatus = status
		completedResult = result
		return nil
	}

	svc := NewWebhookService(callbacks, resumer)

	result, err := svc.Process(context.Background(), "tok123", WebhookPayload{
		ID:     "j1",
		Status: runpod.StatusCompleted,
		Output: map[string]any{"url": "s3://out.mp4"},
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeResumedSuccess, result.Outcome)
	assert.Equal(t, "j1", result.JobID)

	// Workflow resumed exactly once, with the echoed metadata.
	assert.Equal(t, 1, resumer.successCalls)
	assert.Zero(t, resumer.failureCalls)
	assert.Equal(t, "j1", resumer.lastOutput["job_id"])
	assert.Equal(t, "seg_0000.mp4", resumer.lastOutput["segment_filename"])
	assert.Equal(t, "e1", resumer.lastOutput["exec_id"])
	assert.Equal(t, "tok123", resumer.lastOutput["callback_token"])
	assert.Equal(t, map[string]any{"url": "s3://out.mp4"}, resumer.lastOutput["output"])

	// Record moved to COMPLETED with the job output in its result.
	assert.Equal(t, domain.CallbackStatusCompleted, completedStatus)
	assert.Equal(t, "j1", completedResult["job_id"])
	assert.Equal(t, map[string]any{"url": "s3://out.mp4"}, completedResult["output"])
}

func TestWebhookProcessFailure(t *testing.T) {
	record := pendingRecord()
	callbacks := storeWithRecord(record)
	resumer := &mockResumer{}

	var completedStatus domain.CallbackStatus
	callbacks.CompleteFn = func(ctx context.Context, token string, status domain.CallbackStatus, result map[string]any) error {
		completedStatus = status
		return nil
	}

	svc := NewWebhookService(callbacks, resumer)

	result, err := svc.Process(context.Background(), "tok123", WebhookPayload{
		ID:     "j1",
		Status: runpod.StatusFailed,
		Error:  "GPU OOM",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeResumedFailure, result.Outcome)
	assert.Equal(t, 1, resumer.failureCalls)
	assert.Zero(t, resumer.successCalls)
	assert.Equal(t, "RunPodFAILED", resumer.lastCode)
	assert.Equal(t, "GPU OOM", resumer.lastCause)
	assert.Equal(t, domain.CallbackStatusFailed, completedStatus)
}

func TestWebhookProcessFailureDefaultCause(t *testing.T) {
	tests := []struct {
		status    runpod.JobStatus
		wantCode  string
		wantCause string
	}{
		{runpod.StatusCancelled, "RunPodCANCELLED", "RunPod job CANCELLED"},
		{runpod.StatusTimedOut, "RunPodTIMEDOUT", "RunPod job TIMED_OUT"},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			record := pendingRecord()
			callbacks := storeWithRecord(record)
			resumer := &mockResumer{}
			svc := NewWebhookService(callbacks, resumer)

			_, err := svc.Process(context.Background(), "tok123", WebhookPayload{
				ID:     "j1",
				Status: tc.status,
			})
			require.NoError(t, err)

			assert.Equal(t, tc.wantCode, resumer.lastCode)
			assert.Equal(t, tc.wantCause, resumer.lastCause)
		})
	}
}

func TestWebhookProcessUnknownToken(t *testing.T) {
	callbacks := storeWithRecord(nil)
	resumer := &mockResumer{}
	svc := NewWebhookService(callbacks, resumer)

	_, err := svc.Process(context.Background(), "missing", WebhookPayload{
		ID:     "j1",
		Status: runpod.StatusCompleted,
	})

	assert.ErrorIs(t, err, store.ErrCallbackNotFound)
	assert.Zero(t, resumer.successCalls)
	assert.Zero(t, resumer.failureCalls)
}

func TestWebhookProcessIdempotentReplay(t *testing.T) {
	record := pendingRecord()
	completedAt := time.Now().UTC().Add(-time.Minute)
	record.Status = domain.CallbackStatusCompleted
	record.CompletedAt = &completedAt

	callbacks := storeWithRecord(record)
	resumer := &mockResumer{}
	svc := NewWebhookService(callbacks, resumer)

	result, err := svc.Process(context.Background(), "tok123", WebhookPayload{
		ID:     "j1",
		Status: runpod.StatusCompleted,
		Output: map[string]any{"url": "s3://out.mp4"},
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAlreadyProcessed, result.Outcome)
	require.NotNil(t, result.CompletedAt)
	assert.True(t, result.CompletedAt.Equal(completedAt))

	// The critical idempotency guarantee: no second resume, no write.
	assert.Zero(t, resumer.successCalls)
	assert.Zero(t, resumer.failureCalls)
	assert.Zero(t, callbacks.completeCalls)
}

func TestWebhookProcessUnrecognizedStatus(t *testing.T) {
	record := pendingRecord()
	callbacks := storeWithRecord(record)
	resumer := &mockResumer{}
	svc := NewWebhookService(callbacks, resumer)

	result, err := svc.Process(context.Background(), "tok123", WebhookPayload{
		ID:     "j1",
		Status: runpod.JobStatus("IN_PROGRESS"),
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeIgnoredUnknownStatus, result.Outcome)
	assert.Zero(t, resumer.successCalls)
	assert.Zero(t, resumer.failureCalls)
	assert.Zero(t, callbacks.completeCalls)
}

func TestWebhookProcessStaleTaskToken(t *testing.T) {
	tests := []struct {
		name      string
		status    runpod.JobStatus
		wantFinal domain.CallbackStatus
	}{
		// A stale token on the success path still completes the record.
		{"success_path", runpod.StatusCompleted, domain.CallbackStatusCompleted},
		// On the failure path the record fails either way.
		{"failure_path", runpod.StatusFailed, domain.CallbackStatusFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			record := pendingRecord()
			callbacks := storeWithRecord(record)
			resumer := &mockResumer{
				ResumeSuccessFn: func(ctx context.Context, taskToken string, output map[string]any) error {
					return workflow.ErrTaskTokenTimedOut
				},
				ResumeFailureFn: func(ctx context.Context, taskToken string, errorCode, cause string) error {
					return workflow.ErrTaskTokenTimedOut
				},
			}

			var completedStatus domain.CallbackStatus
			callbacks.CompleteFn = func(ctx context.Context, token string, status domain.CallbackStatus, result map[string]any) error {
				completedStatus = status
				return nil
			}

			svc := NewWebhookService(callbacks, resumer)

			result, err := svc.Process(context.Background(), "tok123", WebhookPayload{
				ID:     "j1",
				Status: tc.status,
			})
			require.NoError(t, err)

			// Terminal despite the failed resume, so retries stop here.
			assert.Equal(t, OutcomeStaleTaskToken, result.Outcome)
			assert.Equal(t, tc.wantFinal, completedStatus)
			assert.Equal(t, 1, callbacks.completeCalls)
		})
	}
}

func TestWebhookProcessInvalidTaskToken(t *testing.T) {
	record := pendingRecord()
	callbacks := storeWithRecord(record)
	resumer := &mockResumer{
		ResumeSuccessFn: func(ctx context.Context, taskToken string, output map[string]any) error {
			return workflow.ErrTaskTokenInvalid
		},
	}

	var completedStatus domain.CallbackStatus
	callbacks.CompleteFn = func(ctx context.Context, token string, status domain.CallbackStatus, result map[string]any) error {
		completedStatus = status
		return nil
	}

	svc := NewWebhookService(callbacks, resumer)

	result, err := svc.Process(context.Background(), "tok123", WebhookPayload{
		ID:     "j1",
		Status: runpod.StatusCompleted,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeInvalidTaskToken, result.Outcome)
	assert.Equal(t, domain.CallbackStatusFailed, completedStatus)
}

func TestWebhookProcessTransientResumeFailureKeepsRecordPending(t *testing.T) {
	record := pendingRecord()
	callbacks := storeWithRecord(record)
	resumer := &mockResumer{
		ResumeSuccessFn: func(ctx context.Context, taskToken string, output map[string]any) error {
			return errors.New("engine unavailable")
		},
	}

	svc := NewWebhookService(callbacks, resumer)

	_, err := svc.Process(context.Background(), "tok123", WebhookPayload{
		ID:     "j1",
		Status: runpod.StatusCompleted,
	})

	require.Error(t, err)
	// No terminal write: the next delivery retries the resume.
	assert.Zero(t, callbacks.completeCalls)
}

func TestWebhookProcessLostConditionalWriteIsBenign(t *testing.T) {
	record := pendingRecord()
	callbacks := storeWithRecord(record)
	callbacks.CompleteFn = func(ctx context.Context, token string, status domain.CallbackStatus, result map[string]any) error {
		return store.ErrAlreadyTerminal
	}
	resumer := &mockResumer{}

	svc := NewWebhookService(callbacks, resumer)

	result, err := svc.Process(context.Background(), "tok123", WebhookPayload{
		ID:     "j1",
		Status: runpod.StatusCompleted,
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeResumedSuccess, result.Outcome)
}
