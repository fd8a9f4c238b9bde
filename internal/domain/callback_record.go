package domain

import (
	"errors"
	"time"
)

// CallbackStatus represents the lifecycle state of a callback record.
type CallbackStatus string

// Possible callback record status values.
const (
	CallbackStatusPending   CallbackStatus = "PENDING"
	CallbackStatusCompleted CallbackStatus = "COMPLETED"
	CallbackStatusFailed    CallbackStatus = "FAILED"
)

// Common validation errors for CallbackRecord
var (
	ErrEmptyCallbackToken    = errors.New("callback token cannot be empty")
	ErrEmptyTaskToken        = errors.New("task token cannot be empty")
	ErrEmptyExecID           = errors.New("exec ID cannot be empty")
	ErrEmptySegmentFilename  = errors.New("segment filename cannot be empty")
	ErrInvalidCallbackStatus = errors.New("invalid callback status")
	ErrInvalidExpiry         = errors.New("expiry must be after creation time")
)

// IsTerminal reports whether the status permits no further transitions.
func (s CallbackStatus) IsTerminal() bool {
	return s == CallbackStatusCompleted || s == CallbackStatusFailed
}

// CallbackRecord correlates an external job's callback token with the
// workflow engine task token needed to resume the parked execution.
// It is created once at submission time with status PENDING and transitions
// exactly once to COMPLETED or FAILED when the webhook arrives.
type CallbackRecord struct {
	CallbackToken   string         `json:"callback_token"`
	TaskToken       string         `json:"task_token"`
	JobID           string         `json:"job_id"`
	ExecID          string         `json:"exec_id"`
	SegmentFilename string         `json:"segment_filename"`
	Status          CallbackStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	ExpiresAt       time.Time      `json:"expires_at"`
}

// NewCallbackRecord creates a PENDING CallbackRecord for a freshly submitted
// external job. The record expires ttl after creation; ttl must comfortably
// exceed any realistic job runtime so late or retried webhooks still find it.
// Returns an error if validation fails.
func NewCallbackRecord(
	callbackToken, taskToken, jobID, execID, segmentFilename string,
	ttl time.Duration,
) (*CallbackRecord, error) {
	now := time.Now().UTC()

	record := &CallbackRecord{
		CallbackToken:   callbackToken,
		TaskToken:       taskToken,
		JobID:           jobID,
		ExecID:          execID,
		SegmentFilename: segmentFilename,
		Status:          CallbackStatusPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks if the CallbackRecord has valid data.
// Returns an error if any field fails validation.
func (r *CallbackRecord) Validate() error {
	if r.CallbackToken == "" {
		return ErrEmptyCallbackToken
	}

	if r.TaskToken == "" {
		return ErrEmptyTaskToken
	}

	if r.ExecID == "" {
		return ErrEmptyExecID
	}

	if r.SegmentFilename == "" {
		return ErrEmptySegmentFilename
	}

	if !isValidCallbackStatus(r.Status) {
		return ErrInvalidCallbackStatus
	}

	if !r.ExpiresAt.After(r.CreatedAt) {
		return ErrInvalidExpiry
	}

	return nil
}

// Expired reports whether the record's TTL has elapsed at the given instant.
func (r *CallbackRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// isValidCallbackStatus checks if the given status is a valid CallbackStatus.
func isValidCallbackStatus(status CallbackStatus) bool {
	switch status {
	case CallbackStatusPending, CallbackStatusCompleted, CallbackStatusFailed:
		return true
	default:
		return false
	}
}
