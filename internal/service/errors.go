package service

import (
	"fmt"
)

// MissingFieldError reports a submission request missing a required field.
// Surfaced immediately to the caller; nothing has been submitted or stored.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// PersistenceError reports a correlation-record write that failed after the
// external job was already submitted. The job is orphaned: it will run and
// eventually call back to a token no record resolves, which the webhook
// handler answers with not-found. Reconciliation is manual (see the sweep's
// orphan report); retrying the submission would start a second job.
type PersistenceError struct {
	JobID string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist callback record for job %s: %v", e.JobID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
