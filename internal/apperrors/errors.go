// Package apperrors defines the error taxonomy shared across storage,
// services, and HTTP handlers. Handlers map these sentinels to status codes.
package apperrors

import "errors"

var (
	// ErrNotFound indicates a referenced document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds indicates a ledger action would drive cash negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientShares indicates a ledger action would drive a holding negative.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrConflict indicates a concurrent modification was detected via the
	// portfolio version check. Callers should re-read and retry.
	ErrConflict = errors.New("conflict: document modified concurrently")

	// ErrUpstreamUnavailable indicates the document store or a market-data
	// endpoint failed or timed out.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrValidation indicates malformed or unacceptable input, rejected
	// before any write.
	ErrValidation = errors.New("validation failed")
)

// IsRetryable reports whether an operation failing with err may succeed if
// the read-modify-write cycle is repeated. Only version conflicts qualify;
// precondition failures are stable and upstream failures are surfaced as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
