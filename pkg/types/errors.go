package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeAuthorization ErrorType = "authorization"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeInternal      ErrorType = "internal"
)

// Registry error codes
const (
	ErrCodeAlreadyRegistered = "ALREADY_REGISTERED"
	ErrCodeNotRegistered     = "NOT_REGISTERED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeAccessDenied      = "ACCESS_DENIED"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// RegistryError represents a structured error raised by the record registry.
//
// Unauthorized is an identity-ownership violation that no grant can cure.
// AccessDenied is a missing or revoked permission grant and is cured by the
// patient granting access.
type RegistryError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same error code, so the sentinels
// below work with errors.Is.
func (e *RegistryError) Is(target error) bool {
	t, ok := target.(*RegistryError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrAlreadyRegistered = &RegistryError{Type: ErrorTypeConflict, Code: ErrCodeAlreadyRegistered, Message: "Already registered"}
	ErrNotRegistered     = &RegistryError{Type: ErrorTypeNotFound, Code: ErrCodeNotRegistered, Message: "Not registered"}
	ErrNotFound          = &RegistryError{Type: ErrorTypeNotFound, Code: ErrCodeNotFound, Message: "Not found"}
	ErrUnauthorized      = &RegistryError{Type: ErrorTypeAuthorization, Code: ErrCodeUnauthorized, Message: "Unauthorized"}
	ErrAccessDenied      = &RegistryError{Type: ErrorTypeAuthorization, Code: ErrCodeAccessDenied, Message: "Access denied"}
	ErrInvalidInput      = &RegistryError{Type: ErrorTypeValidation, Code: ErrCodeInvalidInput, Message: "Invalid input"}
	ErrInternal          = &RegistryError{Type: ErrorTypeInternal, Code: ErrCodeInternalError, Message: "Internal error"}
)

// NewAlreadyRegisteredError creates a duplicate self-registration error
func NewAlreadyRegisteredError(message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeAlreadyRegistered,
		Message: "Already registered: " + message,
	}
}

// NewNotRegisteredError creates an error for operations on a missing own record
func NewNotRegisteredError(message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeNotRegistered,
		Message: "Not registered: " + message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeNotFound,
		Message: "Not found: " + message,
	}
}

// NewUnauthorizedError creates an identity-ownership violation error
func NewUnauthorizedError(message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeAuthorization,
		Code:    ErrCodeUnauthorized,
		Message: "Unauthorized: " + message,
	}
}

// NewAccessDeniedError creates a missing-permission error
func NewAccessDeniedError(message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeAuthorization,
		Code:    ErrCodeAccessDenied,
		Message: "Access denied: " + message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details map[string]interface{}) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeInvalidInput,
		Message: message,
		Details: details,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode extracts the registry error code from err, or ErrCodeInternalError
// when err is not a RegistryError.
func ErrorCode(err error) string {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code
	}
	return ErrCodeInternalError
}
