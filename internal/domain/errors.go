package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrCapacityExceeded is the definitive answer for a reservation the
	// inventory cannot hold; it is never retried.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrVersionConflict signals an optimistic-concurrency collision on an
	// inventory record; the ledger retries a bounded number of times before
	// escalating to ErrCapacityExceeded.
	ErrVersionConflict = errors.New("version conflict")

	// ErrMappingMissing marks a local plan with no partner code; the item is
	// skipped with a warning, never retried.
	ErrMappingMissing = errors.New("channel mapping missing")

	// ErrPartnerUnavailable covers network, auth, and 5xx failures from a
	// channel adapter. It is the only adapter error the coordinator retries.
	ErrPartnerUnavailable = errors.New("partner unavailable")

	// ErrSyncInProgress rejects a sync request for a property whose previous
	// pass has not finished.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// ValidationError reports bad caller input; it is surfaced immediately and
// never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
