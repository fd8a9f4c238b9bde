package store

import (
	"context"
	"time"

	"github.com/jonesleonard/upscaler/internal/domain"
)

// CallbackStore defines the persistence operations for callback records.
// There is exactly one record per callback token for the lifetime of a
// submitted job; records are created PENDING and updated at most once to a
// terminal state.
type CallbackStore interface {
	// Create persists a new callback record. Returns ErrDuplicateToken if a
	// record with the same callback token already exists, or ErrInvalidEntity
	// wrapping the validation error if the record is malformed.
	Create(ctx context.Context, record *domain.CallbackRecord) error

	// GetByToken retrieves the live record for the given callback token.
	// Records past their expiry are treated as absent. Returns
	// ErrCallbackNotFound if no live record exists.
	GetByToken(ctx context.Context, callbackToken string) (*domain.CallbackRecord, error)

	// Complete transitions a PENDING record to the given terminal status,
	// setting completed_at and result. The update is conditional on the
	// record still being PENDING; if a concurrent delivery already won the
	// transition, ErrAlreadyTerminal is returned. Returns
	// ErrCallbackNotFound if the token is unknown.
	Complete(
		ctx context.Context,
		callbackToken string,
		status domain.CallbackStatus,
		result map[string]any,
	) error

	// DeleteExpired removes records whose expiry precedes the given cutoff,
	// regardless of status, and returns the number of rows removed. This is
	// the store-level TTL garbage collection.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)

	// ListExpiredPending returns records that are past their expiry but
	// still PENDING: jobs that never called back, or orphans left behind by
	// a submission whose record write failed elsewhere. Used by the
	// reconciliation sweep for reporting before deletion.
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.CallbackRecord, error)
}
