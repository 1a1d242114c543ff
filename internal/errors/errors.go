// Package errors provides the unified error type used across the service:
// one structured error carrying a category, a stable code, severity and
// retryability, so handlers and logs treat every failure the same way.
// The storage-access layer's failure taxonomy (not-found, already-exists,
// conflict-pending-delete, timeout, shutdown, adapter-rejected,
// adapter-failed) is expressed as first-class error types alongside the
// generic validation/internal/connection categories.
package errors

import (
	"errors"
	"fmt"

	"syncdal/internal/dal/types"
)

// ErrorType is the category of an error, used for handling and response
// mapping.
type ErrorType string

const (
	// Generic categories.
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeConnection  ErrorType = "CONNECTION"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// Storage-access layer categories.
	ErrorTypeNotFound              ErrorType = "NOT_FOUND"
	ErrorTypeAlreadyExists         ErrorType = "ALREADY_EXISTS"
	ErrorTypeConflictPendingDelete ErrorType = "CONFLICT_PENDING_DELETE"
	ErrorTypeTimeout               ErrorType = "TIMEOUT"
	ErrorTypeShutdown              ErrorType = "SHUTDOWN"
	ErrorTypeAdapterRejected       ErrorType = "ADAPTER_REJECTED"
	ErrorTypeAdapterFailed         ErrorType = "ADAPTER_FAILED"
)

// ErrorSeverity is the logging/monitoring severity of an error.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// UnifiedError is the structured error every layer of the service speaks.
type UnifiedError struct {
	Type      ErrorType
	Code      string
	Message   string
	Details   map[string]any
	Severity  ErrorSeverity
	Retryable bool
	Cause     error
}

func (e *UnifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *UnifiedError) Unwrap() error { return e.Cause }

// Is matches two UnifiedErrors on type and code, so errors.Is works with
// sentinel-style comparisons.
func (e *UnifiedError) Is(target error) bool {
	var ue *UnifiedError
	if !errors.As(target, &ue) {
		return false
	}
	return e.Type == ue.Type && (ue.Code == "" || e.Code == ue.Code)
}

// WithDetail returns e with one detail key set.
func (e *UnifiedError) WithDetail(key string, value any) *UnifiedError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause returns e wrapping cause.
func (e *UnifiedError) WithCause(cause error) *UnifiedError {
	e.Cause = cause
	return e
}

func newError(t ErrorType, code, message string, severity ErrorSeverity, retryable bool) *UnifiedError {
	return &UnifiedError{Type: t, Code: code, Message: message, Severity: severity, Retryable: retryable}
}

// NotFound builds a not-found error for the given object.
func NotFound(objectID string) *UnifiedError {
	return newError(ErrorTypeNotFound, "DAL_NOT_FOUND", "record not found", SeverityLow, false).
		WithDetail("object_id", objectID)
}

// AlreadyExists builds an insert-collision error.
func AlreadyExists(objectID string) *UnifiedError {
	return newError(ErrorTypeAlreadyExists, "DAL_ALREADY_EXISTS", "record already exists", SeverityLow, false).
		WithDetail("object_id", objectID)
}

// ConflictPendingDelete builds the write-after-queued-delete conflict.
func ConflictPendingDelete(objectID string) *UnifiedError {
	return newError(ErrorTypeConflictPendingDelete, "DAL_CONFLICT_PENDING_DELETE",
		"a delete for this record is already queued", SeverityLow, true).
		WithDetail("object_id", objectID)
}

// Timeout builds a caller-wrapper timeout error.
func Timeout(kind, op string) *UnifiedError {
	return newError(ErrorTypeTimeout, "DAL_TIMEOUT", "request timed out before completion", SeverityMedium, true).
		WithDetail("kind", kind).WithDetail("operation", op)
}

// Shutdown builds the submitted-after-stop error.
func Shutdown() *UnifiedError {
	return newError(ErrorTypeShutdown, "DAL_SHUTDOWN", "component is shutting down", SeverityMedium, false)
}

// AdapterRejected builds the synchronous-rejection error.
func AdapterRejected(objectID string) *UnifiedError {
	return newError(ErrorTypeAdapterRejected, "DAL_ADAPTER_REJECTED", "adapter refused the request", SeverityMedium, true).
		WithDetail("object_id", objectID)
}

// AdapterFailed builds the accepted-but-later-failed error.
func AdapterFailed(objectID string) *UnifiedError {
	return newError(ErrorTypeAdapterFailed, "DAL_ADAPTER_FAILED", "adapter reported failure", SeverityMedium, true).
		WithDetail("object_id", objectID)
}

// Validation builds a request-validation error.
func Validation(message string) *UnifiedError {
	return newError(ErrorTypeValidation, "VALIDATION_FAILED", message, SeverityLow, false)
}

// Internal builds an unexpected-internal error.
func Internal(message string) *UnifiedError {
	return newError(ErrorTypeInternal, "INTERNAL_ERROR", message, SeverityHigh, false)
}

// Connection builds a downstream-connection error.
func Connection(target string, cause error) *UnifiedError {
	return newError(ErrorTypeConnection, "CONNECTION_FAILED", "connection failed", SeverityHigh, true).
		WithDetail("target", target).WithCause(cause)
}

// FromOutcome converts a failed storage-access outcome into a UnifiedError.
// Returns nil for successful outcomes.
func FromOutcome(o types.Outcome) *UnifiedError {
	if o.Success {
		return nil
	}
	objID := ""
	if !o.ObjectID.IsZero() {
		objID = o.ObjectID.String()
	}
	switch o.Reason {
	case types.ReasonNotFound:
		return NotFound(objID)
	case types.ReasonAlreadyExists:
		return AlreadyExists(objID)
	case types.ReasonConflictPendingDelete:
		return ConflictPendingDelete(objID)
	case types.ReasonTimeout:
		return Timeout("", "")
	case types.ReasonShutdown:
		return Shutdown()
	case types.ReasonAdapterRejected:
		return AdapterRejected(objID)
	case types.ReasonAdapterFailed:
		return AdapterFailed(objID)
	default:
		return Internal("request failed").WithDetail("object_id", objID)
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal when err is not
// a UnifiedError.
func TypeOf(err error) ErrorType {
	var ue *UnifiedError
	if errors.As(err, &ue) {
		return ue.Type
	}
	return ErrorTypeInternal
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var ue *UnifiedError
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}
