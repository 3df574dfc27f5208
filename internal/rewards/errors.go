package rewards

import "errors"

var (
	ErrNotAuthenticated   = errors.New("authentication required")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyClaimed     = errors.New("reward already claimed")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrValidation         = errors.New("invalid request")

	// ErrInvariant marks a data-model violation: a catalog row or stored
	// state the engine cannot interpret. Never user-recoverable.
	ErrInvariant = errors.New("rewards invariant violated")

	// ErrVersionConflict is returned by the store when a conditional update
	// lost a race with another writer.
	ErrVersionConflict = errors.New("rewards row changed concurrently")

	// ErrDuplicateAttempt is returned by the store when an attempt id has
	// already been recorded for the user.
	ErrDuplicateAttempt = errors.New("attempt already processed")
)
