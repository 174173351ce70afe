// Package errors defines the service error taxonomy shared by the HTTP
// layer and the middleware stack. Every ServiceError carries a stable
// machine-readable code and the HTTP status it maps to.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies an error category. Codes are part of the API
// contract and must remain stable.
type ErrorCode string

const (
	CodeMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	CodeInvalidCredential ErrorCode = "INVALID_CREDENTIAL"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeMissingRole       ErrorCode = "MISSING_ROLE"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeBadRequest        ErrorCode = "BAD_REQUEST"
	CodeInternal          ErrorCode = "INTERNAL"
)

// ServiceError is a recoverable error that maps deterministically to an
// HTTP response. None of these abort the process.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a key/value pair for structured logging. Returns
// the receiver for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// MissingCredential indicates the request carried no bearer token at all.
func MissingCredential() *ServiceError {
	return &ServiceError{
		Code:       CodeMissingCredential,
		Message:    "Access token required",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// InvalidCredential covers signature failure, malformed structure, and
// expiry. The message is uniform on purpose so callers cannot distinguish
// which check failed.
func InvalidCredential(cause error) *ServiceError {
	return &ServiceError{
		Code:       CodeInvalidCredential,
		Message:    "Invalid or expired token",
		HTTPStatus: http.StatusUnauthorized,
		cause:      cause,
	}
}

// Forbidden indicates an authenticated identity that is not allowed to
// touch the resource.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "Insufficient permissions"
	}
	return &ServiceError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// MissingRole indicates a role-gated check against a claim that carries no
// role attribute at all. Distinct from Forbidden so clients can tell a
// wrong role from an absent one.
func MissingRole() *ServiceError {
	return &ServiceError{
		Code:       CodeMissingRole,
		Message:    "Role information not found",
		HTTPStatus: http.StatusForbidden,
	}
}

// RateLimited indicates the caller exhausted its admission window.
func RateLimited() *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimited,
		Message:    "Too many requests",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// NotFound indicates a missing resource.
func NotFound(message string) *ServiceError {
	return &ServiceError{
		Code:       CodeNotFound,
		Message:    message,
		HTTPStatus: http.StatusNotFound,
	}
}

// BadRequest indicates an unparsable or invalid request payload.
func BadRequest(message string) *ServiceError {
	return &ServiceError{
		Code:       CodeBadRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Internal wraps an unexpected failure. The cause is logged, never
// returned to the client.
func Internal(message string, cause error) *ServiceError {
	return &ServiceError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		cause:      cause,
	}
}

// GetServiceError extracts a *ServiceError from err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
