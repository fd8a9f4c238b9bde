package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. A callback record past its expiry is also reported as not found,
	// matching the behavior of a TTL-expired row.
	ErrNotFound = errors.New("entity not found")

	// ErrCallbackNotFound indicates that no live callback record exists for
	// the given callback token.
	ErrCallbackNotFound = fmt.Errorf("%w: callback record", ErrNotFound)

	// ErrDuplicateToken is returned when creating a record whose callback
	// token is already present. With 256-bit random tokens this indicates a
	// caller bug, not a real collision.
	ErrDuplicateToken = errors.New("callback token already exists")

	// ErrAlreadyTerminal is returned by conditional terminal updates when the
	// record is no longer PENDING. Callers treat this as "another delivery
	// won the race" and must not resume the workflow again.
	ErrAlreadyTerminal = errors.New("callback record already in terminal state")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored.
	ErrInvalidEntity = errors.New("invalid entity")
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCallbackNotFound)
}
