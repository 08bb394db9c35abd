package types

import "fmt"

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Request validation error codes
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
)

// Domain error codes
const (
	ErrNotFound ErrorCode = "NOT_FOUND"
	ErrConflict ErrorCode = "CONFLICT"
)

// Collaborator error codes
const (
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrUpstreamTimeout  ErrorCode = "UPSTREAM_TIMEOUT"
	ErrInternalError    ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NotFound creates a NOT_FOUND error for an absent entity.
func NotFound(entity, id string) *Error {
	return &Error{Code: ErrNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id), HTTPStatus: 404}
}

// Conflict creates a CONFLICT error for a violated uniqueness invariant.
func Conflict(message string) *Error {
	return &Error{Code: ErrConflict, Message: message, HTTPStatus: 409}
}

// Invalid creates an INVALID_REQUEST error.
func Invalid(message string) *Error {
	return &Error{Code: ErrInvalidRequest, Message: message, HTTPStatus: 400}
}

// StoreUnavailable wraps a persistence failure as a retryable error.
func StoreUnavailable(cause error) *Error {
	return &Error{
		Code:       ErrStoreUnavailable,
		Message:    "persistence store unavailable",
		HTTPStatus: 503,
		Retryable:  true,
		Cause:      cause,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsCode reports whether err is an *Error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
