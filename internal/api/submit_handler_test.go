package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesleonard/upscaler/internal/platform/runpod"
	"github.com/jonesleonard/upscaler/internal/service"
)

type mockJobSubmitter struct {
	SubmitFn    func(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
	submitCalls int
	lastRequest service.SubmitRequest
}

func (m *mockJobSubmitter) Submit(
	ctx context.Context,
	req service.SubmitRequest,
) (*service.SubmitResult, error) {
	m.submitCalls++
	m.lastRequest = req
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, req)
	}
	return &service.SubmitResult{
		CallbackToken:   "tok123",
		JobID:           "job-1",
		WebhookURL:      "https://api.example.com/webhook/tok123",
		SegmentFilename: req.Segment.Filename,
		ExecID:          req.ExecID,
	}, nil
}

func validSubmitBody() map[string]any {
	return map[string]any{
		"task_token": "t1",
		"exec_id":    "e1",
		"segment": map[string]any{
			"index":    0,
			"filename": "seg_0000.mp4",
			"s3_uri":   "s3://bucket/runs/e1/raw/seg_0000.mp4",
		},
		"input_presigned_url":  "https://storage.example.com/in.mp4?sig=a",
		"output_presigned_url": "https://storage.example.com/out.mp4?sig=b",
		"runpod": map[string]any{
			"run_endpoint": "https://api.runpod.ai/v2/abc/run",
			"params":       map[string]any{"model": "seedvr2_ema_7b_fp16"},
		},
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestSubmitJob(t *testing.T) {
	submitter := &mockJobSubmitter{}
	handler := NewJobHandler(submitter)

	w := postJSON(t, handler.SubmitJob, "/api/jobs", validSubmitBody())

	assert.Equal(t, http.StatusAccepted, w.Code)

	var result service.SubmitResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "tok123", result.CallbackToken)
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, "https://api.example.com/webhook/tok123", result.WebhookURL)

	// Wire fields landed in the right service request fields.
	assert.Equal(t, "t1", submitter.lastRequest.TaskToken)
	assert.Equal(t, "seg_0000.mp4", submitter.lastRequest.Segment.Filename)
	assert.Equal(t, "https://api.runpod.ai/v2/abc/run", submitter.lastRequest.EndpointURL)
	assert.Equal(t, map[string]any{"model": "seedvr2_ema_7b_fp16"}, submitter.lastRequest.Params)
}

func TestSubmitJobInvalidJSON(t *testing.T) {
	submitter := &mockJobSubmitter{}
	handler := NewJobHandler(submitter)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	handler.SubmitJob(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, submitter.submitCalls)
}

func TestSubmitJobValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing_task_token", func(b map[string]any) { delete(b, "task_token") }},
		{"missing_exec_id", func(b map[string]any) { delete(b, "exec_id") }},
		{"missing_input_url", func(b map[string]any) { delete(b, "input_presigned_url") }},
		{"non_url_endpoint", func(b map[string]any) {
			b["runpod"] = map[string]any{"run_endpoint": "not a url"}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			submitter := &mockJobSubmitter{}
			handler := NewJobHandler(submitter)

			body := validSubmitBody()
			tc.mutate(body)

			w := postJSON(t, handler.SubmitJob, "/api/jobs", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, submitter.submitCalls)
		})
	}
}

func TestSubmitJobServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			"missing_field",
			&service.MissingFieldError{Field: "task_token"},
			http.StatusBadRequest,
		},
		{
			"upstream_rejection",
			&runpod.SubmissionError{StatusCode: 503, Body: "overloaded"},
			http.StatusBadGateway,
		},
		{
			"persistence_failure",
			&service.PersistenceError{JobID: "job-1"},
			http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			submitter := &mockJobSubmitter{
				SubmitFn: func(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error) {
					return nil, tc.err
				},
			}
			handler := NewJobHandler(submitter)

			w := postJSON(t, handler.SubmitJob, "/api/jobs", validSubmitBody())

			assert.Equal(t, tc.wantStatus, w.Code)

			// The raw error never reaches the client.
			assert.NotContains(t, w.Body.String(), "overloaded")
		})
	}
}
