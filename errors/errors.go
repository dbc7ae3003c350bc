package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message, safe to show to callers.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the status used when the error is reported as a plain response.
	HTTPStatus int `json:"-"`
	// Details contains additional context for logging.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Kind returns the family this error belongs to.
func (e *AppError) Kind() Kind { return KindOf(e.Code) }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Validation ---

// UnsupportedType creates the error returned for a disallowed upload type.
func UnsupportedType(contentType string) *AppError {
	return New(ErrCodeUnsupportedType, "Invalid file type. Only audio files are allowed.", http.StatusBadRequest).
		WithDetail("content_type", contentType)
}

// TooLarge creates the error returned for an upload over the size limit.
func TooLarge(limit string) *AppError {
	return New(ErrCodeTooLarge, fmt.Sprintf("File too large. Maximum file size is %s.", limit), http.StatusRequestEntityTooLarge).
		WithDetail("limit", limit)
}

// MissingFile creates the error returned when no audio part was sent.
func MissingFile() *AppError {
	return New(ErrCodeMissingFile, "No audio file provided", http.StatusBadRequest)
}

// InvalidInput creates an error for a malformed request.
func InvalidInput(reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid input: %s", reason), http.StatusBadRequest)
}

// --- Pipeline ---

// ConversionFailed creates the error for a failed audio conversion.
func ConversionFailed(cause error) *AppError {
	return New(ErrCodeConversionFailed, "Audio conversion failed", http.StatusUnprocessableEntity).WithCause(cause)
}

// EngineFailed creates the error for a failed recognition run.
func EngineFailed(message string, cause error) *AppError {
	if message == "" {
		message = "Transcription failed"
	}
	return New(ErrCodeEngineFailed, message, http.StatusInternalServerError).WithCause(cause)
}

// EngineBusy creates the error returned when the engine pool stayed full.
func EngineBusy() *AppError {
	return New(ErrCodeEngineBusy, "Transcription engine is busy. Please try again.", http.StatusServiceUnavailable)
}

// --- Process ---

// StartupFailed creates the error for an unmet startup precondition.
func StartupFailed(what string, cause error) *AppError {
	return New(ErrCodeStartupFailed, fmt.Sprintf("startup check failed: %s", what), http.StatusServiceUnavailable).
		WithCause(cause)
}

// NotifyFailed creates the error for a failed downstream delivery.
func NotifyFailed(sink string, cause error) *AppError {
	return New(ErrCodeNotifyFailed, fmt.Sprintf("notification via %s failed", sink), http.StatusBadGateway).
		WithDetail("sink", sink).WithCause(cause)
}

// Timeout creates a new AppError for an operation that timed out or was canceled.
func Timeout(operation string) *AppError {
	return New(ErrCodeTimeout, "The request was canceled or took too long.", http.StatusGatewayTimeout).
		WithDetail("operation", operation)
}

// ServiceUnavailable creates a new AppError for a dependency that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return New(ErrCodeServiceUnavailable, fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service), http.StatusServiceUnavailable).
		WithDetail("service", service)
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred. Please try again or contact support.", http.StatusInternalServerError).
		WithCause(cause)
}

// KindOfError returns the family of any error. Context cancellation maps
// to KindCanceled; errors that carry no AppError map to KindInternal.
func KindOfError(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind()
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindInternal
}
