// Package apperr defines the stable error taxonomy shared by every layer of
// the purchase pipeline. Handlers map these sentinels to HTTP status codes;
// the worker pool maps them to terminal-vs-retryable job outcomes.
package apperr

import "errors"

var (
	// ErrSaleNotActive means the sale is not within [startTime, endTime] or
	// its status is not active.
	ErrSaleNotActive = errors.New("sale not active")

	// ErrOutOfStock means available quantity was insufficient at reserve time.
	ErrOutOfStock = errors.New("out of stock")

	// ErrAlreadyPurchased means the UNIQUE(userId, productId) constraint on
	// orders was violated.
	ErrAlreadyPurchased = errors.New("already purchased")

	// ErrDuplicateInFlight means a purchase job is already queued or
	// processing for this user.
	ErrDuplicateInFlight = errors.New("duplicate purchase in flight")

	// ErrTooManyAttempts means the per-user rate limit was exceeded.
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrInvalidRequest means the request was malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTransient means a dependency (DB, coordination store, queue) failed
	// in a way that is safe to retry.
	ErrTransient = errors.New("transient failure")

	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvariantViolation means a stock mutation's precondition failed
	// unexpectedly (e.g. confirm with insufficient reserved quantity).
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrMaxAttempts means a job exhausted its retry budget.
	ErrMaxAttempts = errors.New("max attempts exceeded")
)

// Code is the stable string form of an error, used in job.Reason and API
// error bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrSaleNotActive):
		return "SALE_NOT_ACTIVE"
	case errors.Is(err, ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, ErrAlreadyPurchased):
		return "ALREADY_PURCHASED"
	case errors.Is(err, ErrDuplicateInFlight):
		return "DUPLICATE_IN_FLIGHT"
	case errors.Is(err, ErrTooManyAttempts):
		return "TOO_MANY_ATTEMPTS"
	case errors.Is(err, ErrInvalidRequest):
		return "INVALID_REQUEST"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvariantViolation):
		return "INVARIANT_VIOLATION"
	case errors.Is(err, ErrMaxAttempts):
		return "MAX_ATTEMPTS"
	case errors.Is(err, ErrTransient):
		return "TRANSIENT"
	default:
		return "INTERNAL_ERROR"
	}
}

// IsBusiness reports whether err is a terminal business failure (no retry).
func IsBusiness(err error) bool {
	switch {
	case errors.Is(err, ErrSaleNotActive),
		errors.Is(err, ErrOutOfStock),
		errors.Is(err, ErrAlreadyPurchased),
		errors.Is(err, ErrInvalidRequest):
		return true
	default:
		return false
	}
}
