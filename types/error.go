package types

import "fmt"

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

// Provider error codes. Provider-level failures are absorbed by the fallback
// chain; they surface to callers only when a chain is exhausted.
const (
	ErrProviderUnavailable  ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrProviderUnauthorized ErrorCode = "PROVIDER_UNAUTHORIZED"
	ErrProviderRateLimited  ErrorCode = "PROVIDER_RATE_LIMITED"
	ErrProviderQuota        ErrorCode = "PROVIDER_QUOTA_EXCEEDED"
	ErrProviderNotFound     ErrorCode = "PROVIDER_NOT_FOUND"
	ErrUpstreamError        ErrorCode = "UPSTREAM_ERROR"
	ErrUpstreamTimeout      ErrorCode = "UPSTREAM_TIMEOUT"
)

// Orchestration error codes.
const (
	ErrGuardrailInsufficient ErrorCode = "GUARDRAIL_INSUFFICIENT"
	ErrDependencyTimeout     ErrorCode = "DEPENDENCY_TIMEOUT"
	ErrDependencyFailed      ErrorCode = "DEPENDENCY_FAILED"
	ErrConfiguration         ErrorCode = "CONFIGURATION_ERROR"
	ErrRunTimeout            ErrorCode = "RUN_TIMEOUT"
)

// API error codes.
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrRunNotFound    ErrorCode = "RUN_NOT_FOUND"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
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

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
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

// IsConfiguration reports whether err is a configuration error. Configuration
// errors on the company-resolution focus abort the whole run; elsewhere they
// fail only their own focus.
func IsConfiguration(err error) bool {
	return GetErrorCode(err) == ErrConfiguration
}
