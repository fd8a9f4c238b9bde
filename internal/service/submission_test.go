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
)

const testWebhookBase = "https://api.example.com/webhook/"

func validSubmitRequest() SubmitRequest {
	return SubmitRequest{
		TaskToken: "t1",
		ExecID:    "e1",
		Segment: SegmentDescriptor{
			Index:    0,
			Filename: "seg_0000.mp4",
			S3URI:    "s3://bucket/runs/e1/raw/seg_0000.mp4",
		},
		InputURL:    "https://storage.example.com/in.mp4?sig=a",
		OutputURL:   "https://storage.example.com/out.mp4?sig=b",
		EndpointURL: "https://api.runpod.ai/v2/abc/run",
		Params:      map[string]any{"model": "seedvr2_ema_7b_fp16", "resolution": 1080},
	}
}

func TestSubmissionServiceSubmit(t *testing.T) {
	callbacks := &mockCallbackStore{}
	submitter := &mockSubmitter{}

	var created *domain.CallbackRecord
	callbacks.CreateFn = func(ctx context.Context, record *domain.CallbackRecord) error {
		created = record
		return nil
	}

	svc := NewSubmissionService(
		fixedTokenIssuer{token: "tok123"},
		submitter,
		callbacks,
		testWebhookBase,
		168*time.Hour,
	)

	result, err := svc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)

	assert.Equal(t, "tok123", result.CallbackToken)
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, "https://api.example.com/webhook/tok123", result.WebhookURL)
	assert.Equal(t, "seg_0000.mp4", result.SegmentFilename)
	assert.Equal(t, "e1", result.ExecID)

	// The webhook URL handed to the external service embeds the token.
	assert.Equal(t, result.WebhookURL, submitter.lastInput.WebhookURL)

	// Exactly one PENDING record with the full correlation state.
	require.NotNil(t, created)
	assert.Equal(t, 1, callbacks.createCalls)
	assert.Equal(t, "tok123", created.CallbackToken)
	assert.Equal(t, "t1", created.TaskToken)
	assert.Equal(t, "job-1", created.JobID)
	assert.Equal(t, domain.CallbackStatusPending, created.Status)
	assert.WithinDuration(t, time.Now().Add(168*time.Hour), created.ExpiresAt, time.Minute)
}

func TestSubmissionServiceValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*SubmitRequest)
		wantField string
	}{
		{"missing_task_token", func(r *SubmitRequest) { r.TaskToken = "" }, "task_token"},
		{"missing_exec_id", func(r *SubmitRequest) { r.ExecID = "" }, "exec_id"},
		{"missing_segment_filename", func(r *SubmitRequest) { r.Segment.Filename = "" }, "segment.filename"},
		{"missing_input_url", func(r *SubmitRequest) { r.InputURL = "" }, "input_presigned_url"},
		{"missing_output_url", func(r *SubmitRequest) { r.OutputURL = "" }, "output_presigned_url"},
		{"missing_endpoint", func(r *SubmitRequest) { r.EndpointURL = "" }, "runpod.run_endpoint"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			callbacks := &mockCallbackStore{}
			submitter := &mockSubmitter{}
			svc := NewSubmissionService(
				fixedTokenIssuer{token: "tok123"}, submitter, callbacks,
				testWebhookBase, time.Hour,
			)

			req := validSubmitRequest()
			tc.mutate(&req)

			_, err := svc.Submit(context.Background(), req)

			var missing *MissingFieldError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tc.wantField, missing.Field)

			// Nothing was submitted or stored.
			assert.Zero(t, submitter.submitCalls)
			assert.Zero(t, callbacks.createCalls)
		})
	}
}

func TestSubmissionServiceExternalFailureWritesNoRecord(t *testing.T) {
	callbacks := &mockCallbackStore{}
	submitter := &mockSubmitter{
		SubmitFn: func(ctx context.Context, input runpod.SubmitInput) (string, error) {
			return "", &runpod.SubmissionError{StatusCode: 503, Body: "overloaded"}
		},
	}

	svc := NewSubmissionService(
		fixedTokenIssuer{token: "tok123"}, submitter, callbacks,
		testWebhookBase, time.Hour,
	)

	_, err := svc.Submit(context.Background(), validSubmitRequest())

	var subErr *runpod.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, 503, subErr.StatusCode)

	// Retrying from scratch is safe precisely because no record exists.
	assert.Zero(t, callbacks.createCalls)
}

func TestSubmissionServicePersistenceFailure(t *testing.T) {
	callbacks := &mockCallbackStore{
		CreateFn: func(ctx context.Context, record *domain.CallbackRecord) error {
			return errors.New("connection reset")
		},
	}
	submitter := &mockSubmitter{}

	svc := NewSubmissionService(
		fixedTokenIssuer{token: "tok123"}, submitter, callbacks,
		testWebhookBase, time.Hour,
	)

	_, err := svc.Submit(context.Background(), validSubmitRequest())

	var persErr *PersistenceError
	require.ErrorAs(t, err, &persErr)
	assert.Equal(t, "job-1", persErr.JobID)
	assert.Equal(t, 1, submitter.submitCalls)
}

func TestSubmissionServiceTokenIssueFailure(t *testing.T) {
	callbacks := &mockCallbackStore{}
	submitter := &mockSubmitter{}

	svc := NewSubmissionService(
		fixedTokenIssuer{err: errors.New("entropy exhausted")}, submitter, callbacks,
		testWebhookBase, time.Hour,
	)

	_, err := svc.Submit(context.Background(), validSubmitRequest())
	require.Error(t, err)
	assert.Zero(t, submitter.submitCalls)
}

func TestJoinWebhookURL(t *testing.T) {
	assert.Equal(t,
		"https://api.example.com/webhook/tok",
		joinWebhookURL("https://api.example.com/webhook/", "tok"))
	assert.Equal(t,
		"https://api.example.com/webhook/tok",
		joinWebhookURL("https://api.example.com/webhook", "tok"))
}
