package runpod

import "strings"

// JobStatus is the status vocabulary RunPod reports in webhook payloads.
// The set is open on the wire; Classify forces every caller to handle the
// unrecognized case explicitly.
type JobStatus string

// Statuses RunPod delivers in webhook callbacks.
const (
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
	StatusCancelled JobStatus = "CANCELLED"
	StatusTimedOut  JobStatus = "TIMED_OUT"
)

// StatusClass partitions the open status vocabulary into the three cases
// the webhook handler acts on.
type StatusClass int

const (
	// ClassSuccess means the job produced output and the workflow resumes
	// with success.
	ClassSuccess StatusClass = iota

	// ClassFailure means the job terminated without output and the workflow
	// resumes with failure.
	ClassFailure

	// ClassUnrecognized means the status is outside the known vocabulary.
	// The delivery is acknowledged without any workflow action so the
	// external service does not retry indefinitely.
	ClassUnrecognized
)

// Classify maps the status onto its handling class.
func (s JobStatus) Classify() StatusClass {
	switch s {
	case StatusCompleted:
		return ClassSuccess
	case StatusFailed, StatusCancelled, StatusTimedOut:
		return ClassFailure
	default:
		return ClassUnrecognized
	}
}

// ErrorCode derives the workflow failure error code from a failure-like
// status, e.g. TIMED_OUT becomes RunPodTIMEDOUT.
func (s JobStatus) ErrorCode() string {
	return "RunPod" + strings.ReplaceAll(string(s), "_", "")
}
