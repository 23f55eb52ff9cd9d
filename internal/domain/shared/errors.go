package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError for callers and transports
type ErrorKind string

const (
	KindValidation   ErrorKind = "VALIDATION"
	KindConflict     ErrorKind = "CONFLICT"
	KindPrecondition ErrorKind = "PRECONDITION"
	KindNotFound     ErrorKind = "NOT_FOUND"
	// KindConcurrency is a lost optimistic-lock race; the caller may retry
	KindConcurrency ErrorKind = "CONCURRENCY"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so that wrapped copies of a sentinel still compare equal
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error. The kind defaults to validation.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindValidation,
	}
}

// NewValidationError creates an error for malformed or disallowed input
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewConflictError creates an error for a state collision
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindConflict}
}

// NewPreconditionError creates an error for an operation whose prerequisites are not met
func NewPreconditionError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindPrecondition}
}

// NewNotFoundError creates an error for an unknown resource
func NewNotFoundError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindNotFound}
}

// Common domain errors
var (
	ErrNotFound            = NewNotFoundError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewConflictError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = &DomainError{Code: "CONCURRENCY_CONFLICT", Message: "Resource was modified by another process", Kind: KindConcurrency}
	ErrInvalidState        = NewPreconditionError("INVALID_STATE", "Operation not allowed in current state")
)

// KindOf returns the kind of a domain error, or an empty kind for anything else
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// InfrastructureError wraps a storage or transport failure.
// Business rule violations are never wrapped in it.
type InfrastructureError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause
func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// NewInfrastructureError wraps err, leaving domain errors and nil untouched
func NewInfrastructureError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	var ie *InfrastructureError
	if errors.As(err, &ie) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

// IsRetryable reports whether the caller may retry the failed operation.
// Only infrastructure failures and optimistic-lock conflicts qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ie *InfrastructureError
	if errors.As(err, &ie) {
		return true
	}
	return IsKind(err, KindConcurrency)
}
