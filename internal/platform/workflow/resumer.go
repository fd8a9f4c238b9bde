// Package workflow implements the client side of the workflow engine's
// resume operations. The engine parks an execution behind a one-shot task
// token; redeeming the token resumes the execution with either a success
// output or a failure signal.
package workflow

import (
	"context"
	"errors"
)

// Resume errors surfaced by the engine. The task token is redeemable exactly
// once: a second redemption, or one after the engine's own wait timeout,
// fails with one of these.
var (
	// ErrTaskTokenTimedOut is returned when the engine reports the task
	// token as expired or already consumed. Callers must treat this as
	// "the execution is no longer waiting", not as a transient failure.
	ErrTaskTokenTimedOut = errors.New("workflow task token timed out")

	// ErrTaskTokenInvalid is returned when the engine rejects the token as
	// malformed or unknown.
	ErrTaskTokenInvalid = errors.New("workflow task token invalid")
)

// Resumer resumes a parked workflow execution.
type Resumer interface {
	// ResumeSuccess redeems the task token with a success output payload.
	ResumeSuccess(ctx context.Context, taskToken string, output map[string]any) error

	// ResumeFailure redeems the task token with a failure signal carrying a
	// machine-readable error code and a human-readable cause.
	ResumeFailure(ctx context.Context, taskToken string, errorCode, cause string) error
}
