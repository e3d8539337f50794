package models

import "errors"

// Engine error taxonomy. Handlers map these to HTTP problem responses;
// everything else is treated as an internal error.
var (
	ErrInvalidQuantity       = errors.New("quantity below listing minimum or not positive")
	ErrInsufficientQuantity  = errors.New("insufficient available quantity")
	ErrListingNotFound       = errors.New("listing not found or not orderable")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrReservationNotPending = errors.New("reservation is not pending")
	ErrReservationExpired    = errors.New("reservation has expired")
	ErrInvalidExpiry         = errors.New("new expiry must advance the current deadline")
	ErrUnauthorized          = errors.New("actor not allowed to perform this transition")

	// ErrTransientStorage marks serialization failures and lock deadlocks.
	// The engine retries these internally before surfacing them.
	ErrTransientStorage = errors.New("transient storage error")
)
