// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrExpired         = errors.New("expired")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "profile", "matching", "experiment"
	Op      string // Operation that failed, e.g., "Score", "Resolve"
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

// Profile domain errors
var (
	ErrCandidateNotFound  = NewDomainError("profile", "Find", ErrNotFound, "candidate not found")
	ErrInvalidCandidateID = NewDomainError("profile", "Validate", ErrInvalidID, "invalid candidate ID")
	ErrNotEligible        = NewDomainError("profile", "CheckEligibility", ErrInvalidState, "candidate has incomplete questionnaire")
)

// Matching domain errors
var (
	ErrVectorDimensionMismatch = NewDomainError("matching", "Score", ErrInvalidInput, "feature vectors have different dimensions")
	ErrSelfPair                = NewDomainError("matching", "Validate", ErrInvalidInput, "cannot pair a candidate with itself")
	ErrSuggestionNotFound      = NewDomainError("matching", "FindSuggestion", ErrNotFound, "suggestion not found")
	ErrSuggestionFinalized     = NewDomainError("matching", "Respond", ErrStateTransition, "suggestion already finalized")
	ErrSuggestionExpired       = NewDomainError("matching", "Respond", ErrExpired, "suggestion expired")
	ErrNotSuggestionMember     = NewDomainError("matching", "Respond", ErrInvalidInput, "candidate is not a member of this suggestion")
)

// Experiment domain errors
var (
	ErrExperimentNotFound  = NewDomainError("experiment", "Find", ErrNotFound, "experiment not found")
	ErrInvalidTrafficSplit = NewDomainError("experiment", "Validate", ErrValueOutOfRange, "variant traffic weights must sum to 100")
	ErrNoVariants          = NewDomainError("experiment", "Validate", ErrEmptyValue, "experiment has no variants")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
