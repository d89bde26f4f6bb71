package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("ledger: not found")
	ErrAlreadyExists = errors.New("ledger: already exists")
	ErrInvalidInput  = errors.New("ledger: invalid input")

	// Lookup errors
	ErrAccountNotFound     = errors.New("ledger: account not found")
	ErrTransactionNotFound = errors.New("ledger: transaction not found")

	// Posting validation errors
	ErrInvalidAddress    = errors.New("ledger: invalid address")
	ErrEmptyPostings     = errors.New("ledger: transaction has no postings")
	ErrZeroAmount        = errors.New("ledger: posting amount must be positive")
	ErrSameAccount       = errors.New("ledger: posting source equals destination")
	ErrUnbalancedPosting = errors.New("ledger: postings do not balance per asset")
	ErrMissingType       = errors.New("ledger: metadata type is required")
	ErrAccountClosed     = errors.New("ledger: account is closed")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// Idempotency errors
	ErrReferenceRequired = errors.New("ledger: reference is required")
	ErrReferenceConflict = errors.New("ledger: reference reused with a different payload")

	// Revert errors
	ErrAlreadyReverted = errors.New("ledger: transaction already reverted")

	// Storage errors
	ErrDurability  = errors.New("ledger: durable write failed")
	ErrStoreClosed = errors.New("ledger: store is closed")

	// Engine errors
	ErrLedgerClosed = errors.New("ledger: engine is stopped")
)

// ValidationError carries the field or posting position a validation
// failure points at. It always wraps one of the posting validation
// sentinels so callers can classify with errors.Is.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap returns the wrapped sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func validationErr(sentinel error, field, format string, args ...any) error {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsValidation returns true for semantic rejections that require a
// corrected request; retrying the same payload will fail again.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrEmptyPostings) ||
		errors.Is(err, ErrZeroAmount) ||
		errors.Is(err, ErrSameAccount) ||
		errors.Is(err, ErrUnbalancedPosting) ||
		errors.Is(err, ErrMissingType) ||
		errors.Is(err, ErrAccountClosed) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrReferenceRequired) ||
		errors.Is(err, ErrReferenceConflict)
}

// IsRetryable returns true if the operation may be retried with the
// same reference: nothing was committed. Only storage-layer failures
// qualify; semantic errors are terminal for that request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDurability) ||
		errors.Is(err, ErrStoreClosed)
}
