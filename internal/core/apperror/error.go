// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All lifecycle and storage failures surfaced to callers use AppError.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Cascade policy could not be resolved (polymorphic target, unknown type).
	// This is a configuration or data error and always aborts the transaction.
	CodePolicyResolution = "POLICY_RESOLUTION_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Lifecycle rule violations (422)
	CodeCallbackAborted      = "CALLBACK_ABORTED"
	CodeLifecycleUnsupported = "LIFECYCLE_UNSUPPORTED"

	// Not found (404)
	CodeNotFound    = "NOT_FOUND"
	CodeUnknownType = "UNKNOWN_TYPE"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, record refs, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidInput creates a malformed request error (400)
func NewInvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewUnknownType is returned when a record type is not registered.
func NewUnknownType(typeName string) *AppError {
	return &AppError{
		Code:       CodeUnknownType,
		Message:    fmt.Sprintf("record type %q is not registered", typeName),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"type": typeName},
	}
}

// NewCallbackAborted wraps an error returned by a lifecycle hook (422).
func NewCallbackAborted(event string, err error) *AppError {
	return &AppError{
		Code:       CodeCallbackAborted,
		Message:    fmt.Sprintf("%s callback aborted the operation", event),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"event": event},
		Err:        err,
	}
}

// NewPolicyResolution reports a dependent whose cascade policy cannot be resolved (500).
func NewPolicyResolution(relation, message string) *AppError {
	return &AppError{
		Code:       CodePolicyResolution,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"relation": relation},
	}
}

// NewLifecycleUnsupported is returned for lifecycle-only operations on types without destroyed_at (422).
func NewLifecycleUnsupported(typeName, operation string) *AppError {
	return &AppError{
		Code:       CodeLifecycleUnsupported,
		Message:    fmt.Sprintf("%s is not supported: type %q has no destroyed_at column", operation, typeName),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"type": typeName, "operation": operation},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewDatabase wraps a store-level failure (500).
func NewDatabase(op string, err error) *AppError {
	return &AppError{
		Code:       CodeDatabase,
		Message:    fmt.Sprintf("database error during %s", op),
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsCallbackAborted checks if error is CodeCallbackAborted
func IsCallbackAborted(err error) bool {
	return HasCode(err, CodeCallbackAborted)
}
