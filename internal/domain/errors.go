package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthenticated signals a request with no verified identity attached.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrNotPurchasable is returned when checkout is attempted for a free or
	// unpriced event.
	ErrNotPurchasable = errors.New("event not available for purchase")
	// ErrEventEnded refuses checkout once the stream has ended or been cancelled.
	ErrEventEnded = errors.New("event has already ended")
	// ErrAlreadyOwned rejects a second purchase for a user who already holds
	// a completed record for the event.
	ErrAlreadyOwned = errors.New("access already purchased")
	// ErrInvalidSignature marks a webhook whose signature did not verify.
	// Handlers must reject without mutating any state.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrProcessorUnavailable wraps upstream payment-processor failures during
	// checkout creation. Nothing has been written yet, so callers may retry.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
	// ErrAccessDenied gates stream playback for users without a completed purchase.
	ErrAccessDenied = errors.New("access denied")
	// ErrStreamNotLive denies playback while the event is not currently live,
	// even for users with access.
	ErrStreamNotLive = errors.New("event is not currently live")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrAlreadyCompleted is observed by the losing side of a duplicate
	// completion race; the caller acks without reapplying side effects.
	ErrAlreadyCompleted = errors.New("purchase already completed")
)
