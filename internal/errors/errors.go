// Package errors provides the error taxonomy and HTTP status mapping for the
// sync service.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents an application-specific error code.
type Code string

const (
	// Validation errors, detected before any mutation
	CodeInvalidTable   Code = "INVALID_TABLE"
	CodeInvalidVersion Code = "INVALID_VERSION"
	CodeInvalidPage    Code = "INVALID_PAGE"
	CodeMalformedBody  Code = "MALFORMED_BODY"
	CodeEmptyPayload   Code = "EMPTY_PAYLOAD"
	CodeNoIDsProvided  Code = "NO_IDS_PROVIDED"

	// Auth errors
	CodeAuthMissing Code = "AUTH_MISSING"
	CodeAuthFailed  Code = "AUTH_FAILED"

	// Collaborator failures
	CodeBackendError Code = "BACKEND_ERROR"

	// General errors
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeNotFound       Code = "NOT_FOUND"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeInternalError  Code = "INTERNAL_ERROR"
)

// Error is a tagged error carrying an application error code.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a tagged error with the given code and message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Backend wraps a collaborator failure (store, log, cache, identity) as a
// BACKEND_ERROR. The original error is preserved for unwrapping.
func Backend(op string, err error) *Error {
	return &Error{
		Code:    CodeBackendError,
		Message: fmt.Sprintf("%s: %v", op, err),
		cause:   err,
	}
}

// As is a convenience re-export of the standard library errors.As, so callers
// aliasing this package do not need a second errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// CodeOf extracts the error code from err, or INTERNAL_ERROR if err carries
// no code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalError
}

// HTTPStatus maps an error code to an HTTP status code.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidTable, CodeInvalidVersion, CodeInvalidPage,
		CodeMalformedBody, CodeEmptyPayload, CodeNoIDsProvided,
		CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeAuthMissing, CodeAuthFailed:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeBackendError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
