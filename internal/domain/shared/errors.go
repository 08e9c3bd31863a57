package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code, so detailed errors
// built from a sentinel still match it with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Errorf returns a copy of a sentinel domain error with a formatted message
func Errorf(sentinel *DomainError, format string, args ...any) *DomainError {
	return &DomainError{
		Code:    sentinel.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error codes
const (
	CodeInvalidArgument       = "INVALID_ARGUMENT"
	CodeNotFound              = "NOT_FOUND"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeConservationViolation = "CONSERVATION_VIOLATION"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	CodeAlreadyProcessed      = "ALREADY_PROCESSED"
)

// Common domain errors
var (
	// ErrInvalidArgument means the caller passed a malformed request. Not retryable.
	ErrInvalidArgument = NewDomainError(CodeInvalidArgument, "Invalid argument")
	// ErrNotFound means the referenced product line (or layer) does not exist.
	ErrNotFound = NewDomainError(CodeNotFound, "Resource not found")
	// ErrInsufficientStock is a business-state conflict; callers may re-read state and retry.
	ErrInsufficientStock = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	// ErrConservationViolation is an internal defect: cost was created or destroyed.
	// The surrounding transaction must be aborted.
	ErrConservationViolation = NewDomainError(CodeConservationViolation, "Cost conservation violated")
	// ErrConcurrencyConflict is returned when an optimistic version check fails.
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	// ErrAlreadyProcessed is returned when an idempotency key was already claimed.
	ErrAlreadyProcessed = NewDomainError(CodeAlreadyProcessed, "Request was already processed")
)
