// Package shared contains common domain errors used across the grade notifier.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrUnknownSubject  = errors.New("unknown subject")
	ErrInvalidFormat   = errors.New("invalid format")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// Computation errors
	ErrEmptyCollection = errors.New("empty collection")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrFetch              = errors.New("fetch failed")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrStorage            = errors.New("storage error")
	ErrDelivery           = errors.New("delivery failed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "grade", "bakalari", "storage"
	Op      string // Operation that failed, e.g., "Parse", "NewRecord"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	// Unknown subject is a specific validation failure.
	if errors.Is(e.Kind, ErrUnknownSubject) && target == ErrValidation {
		return true
	}
	// A fetch failure always comes from the portal.
	if errors.Is(e.Kind, ErrFetch) && target == ErrExternalService {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ValidationError reports an out-of-contract value in the grade domain.
func ValidationError(op, message string) *DomainError {
	return NewDomainError("grade", op, ErrValidation, message)
}

// UnknownSubjectError reports a subject that has no vocabulary entry.
func UnknownSubjectError(op, subject string) *DomainError {
	return NewDomainError("grade", op, ErrUnknownSubject, fmt.Sprintf("unknown subject %q", subject))
}

// FetchError reports a transient failure reaching the portal.
func FetchError(op string, err error) *DomainError {
	return WrapError("bakalari", op, ErrFetch, "portal request failed", err)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnknownSubject) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrFetch) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsTransient checks if a poll cycle failure may heal by itself on the next run.
func IsTransient(err error) bool {
	if IsValidation(err) {
		return false
	}
	return IsExternalService(err) ||
		errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrDelivery)
}
