package api

import (
	"context"
	"net/http"

	"github.com/jonesleonard/upscaler/internal/api/shared"
	"github.com/jonesleonard/upscaler/internal/platform/logger"
	"github.com/jonesleonard/upscaler/internal/service"
)

// JobSubmitter is the submission service surface the handler depends on.
type JobSubmitter interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
}

// SubmitJobRequest is the wire shape of a job submission.
type SubmitJobRequest struct {
	TaskToken string `json:"task_token"         validate:"required"`
	ExecID    string `json:"exec_id"            validate:"required"`
	Segment   struct {
		Index    int    `json:"index"`
		Filename string `json:"filename" validate:"required"`
		S3URI    string `json:"s3_uri"`
	} `json:"segment"`
	InputPresignedURL  string `json:"input_presigned_url"  validate:"required,url"`
	OutputPresignedURL string `json:"output_presigned_url" validate:"required,url"`
	RunPod             struct {
		RunEndpoint string         `json:"run_endpoint" validate:"required,url"`
		Params      map[string]any `json:"params"`
	} `json:"runpod"`
}

// JobHandler serves the job submission endpoint.
type JobHandler struct {
	submitter JobSubmitter
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(submitter JobSubmitter) *JobHandler {
	return &JobHandler{
		submitter: submitter,
	}
}

// SubmitJob handles POST /api/jobs. It submits the upscale job to the
// external compute service and returns the correlation details the workflow
// engine needs before parking.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req SubmitJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := h.submitter.Submit(r.Context(), service.SubmitRequest{
		TaskToken: req.TaskToken,
		ExecID:    req.ExecID,
		Segment: service.SegmentDescriptor{
			Index:    req.Segment.Index,
			Filename: req.Segment.Filename,
			S3URI:    req.Segment.S3URI,
		},
		InputURL:    req.InputPresignedURL,
		OutputURL:   req.OutputPresignedURL,
		EndpointURL: req.RunPod.RunEndpoint,
		Params:      req.RunPod.Params,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("job accepted",
		"job_id", result.JobID,
		"exec_id", result.ExecID,
		"segment_filename", result.SegmentFilename)

	shared.RespondWithJSON(w, r, http.StatusAccepted, result)
}
