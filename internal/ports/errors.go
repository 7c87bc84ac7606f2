package ports

import (
	"errors"
	"fmt"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Quote Provider Errors
	ErrQuoteUnavailable    = errors.New("quote provider unavailable")
	ErrProviderUnavailable = errors.New("external provider unavailable")
	ErrRateLimited         = errors.New("API rate limit exceeded")

	// Eligibility Errors
	ErrInsufficientEligibility = errors.New("user is not eligible to trade")

	// Execution Errors
	ErrExecutionTimeout  = errors.New("execution confirmation timed out")
	ErrExecutionRejected = errors.New("execution rejected by the chain")
	ErrOrderNotPending   = errors.New("order is not in a pending state")
	ErrOrderExpired      = errors.New("order has expired")

	// Ledger Errors
	ErrLedgerConflict  = errors.New("commission ledger conflict: concurrent-update retries exhausted")
	ErrVersionConflict = errors.New("optimistic concurrency version mismatch")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)

// ValidationError rejects an order whose parameters fall outside the
// configured bounds. Field names the offending parameter so callers can
// attribute the rejection.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AsValidationError extracts a ValidationError from an error chain, if present.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
