package service

import (
	"context"
	"time"

	"github.com/jonesleonard/upscaler/internal/domain"
	"github.com/jonesleonard/upscaler/internal/platform/runpod"
)

// mockCallbackStore is a function-field mock of store.CallbackStore.
type mockCallbackStore struct {
	CreateFn             func(ctx context.Context, record *domain.CallbackRecord) error
	GetByTokenFn         func(ctx context.Context, callbackToken string) (*domain.CallbackRecord, error)
	CompleteFn           func(ctx context.Context, callbackToken string, status domain.CallbackStatus, result map[string]any) error
	DeleteExpiredFn      func(ctx context.Context, cutoff time.Time) (int64, error)
	ListExpiredPendingFn func(ctx context.Context, cutoff time.Time, limit int) ([]*domain.CallbackRecord, error)

	createCalls   int
	completeCalls int
}

func (m *mockCallbackStore) Create(ctx context.Context, record *domain.CallbackRecord) error {
	m.createCalls++
	if m.CreateFn != nil {
		return m.CreateFn(ctx, record)
	}
	return nil
}

func (m *mockCallbackStore) GetByToken(
	ctx context.Context,
	callbackToken string,
) (*domain.CallbackRecord, error) {
	if m.GetByTokenFn != nil {
		return m.GetByTokenFn(ctx, callbackToken)
	}
	return nil, nil
}

func (m *mockCallbackStore) Complete(
	ctx context.Context,
	callbackToken string,
	status domain.CallbackStatus,
	result map[string]any,
) error {
	m.completeCalls++
	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, callbackToken, status, result)
	}
	return nil
}

func (m *mockCallbackStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteExpiredFn != nil {
		return m.DeleteExpiredFn(ctx, cutoff)
	}
	return 0, nil
}

func (m *mockCallbackStore) ListExpiredPending(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*domain.CallbackRecord, error) {
	if m.ListExpiredPendingFn != nil {
		return m.ListExpiredPendingFn(ctx, cutoff, limit)
	}
	return nil, nil
}

// mockSubmitter is a function-field mock of runpod.Submitter.
type mockSubmitter struct {
	SubmitFn    func(ctx context.Context, input runpod.SubmitInput) (string, error)
	submitCalls int
	lastInput   runpod.SubmitInput
}

func (m *mockSubmitter) Submit(ctx context.Context, input runpod.SubmitInput) (string, error) {
	m.submitCalls++
	m.lastInput = input
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, input)
	}
	return "job-1", nil
}

// mockResumer is a function-field mock of workflow.Resumer.
type mockResumer struct {
	ResumeSuccessFn func(ctx context.Context, taskToken string, output map[string]any) error
	ResumeFailureFn func(ctx context.Context, taskToken string, errorCode, cause string) error

	successCalls int
	failureCalls int
	lastOutput   map[string]any
	lastCode     string
	lastCause    string
}

func (m *mockResumer) ResumeSuccess(
	ctx context.Context,
	taskToken string,
	output map[string]any,
) error {
	m.successCalls++
	m.lastOutput = output
	if m.ResumeSuccessFn != nil {
		return m.ResumeSuccessFn(ctx, taskToken, output)
	}
	return nil
}

func (m *mockResumer) ResumeFailure(
	ctx context.Context,
	taskToken string,
	errorCode, cause string,
) error {
	m.failureCalls++
	m.lastCode = errorCode
	m.lastCause = cause
	if m.ResumeFailureFn != nil {
		return m.ResumeFailureFn(ctx, taskToken, errorCode, cause)
	}
	return nil
}

// fixedTokenIssuer returns a constant token.
type fixedTokenIssuer struct {
	token string
	err   error
}

func (f fixedTokenIssuer) Issue() (string, error) {
	return f.token, f.err
}
