package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error codes used across the system. Adapters and domain packages
// define their own string codes (e.g. messaging.CodeConnectionFailed) but the
// ones below are the generic cross-cutting kinds referenced by pkg/database,
// pkg/commerce/payment-style domain packages, and the coordination core.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL"
	CodeUnavailable     = "UNAVAILABLE"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeTimeout         = "TIMEOUT"
)

// AppError is the standard structured error type for the system.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// New creates an AppError with the given code, message, and optional wrapped error.
func New(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Wrap wraps an existing error as an internal AppError, preserving its code if
// it is already an AppError.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return &AppError{Code: ae.Code, Message: message + ": " + ae.Message, Err: ae.Err}
	}
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// InvalidArgument creates an AppError for malformed/invalid input.
func InvalidArgument(message string, err error) *AppError {
	return New(CodeInvalidArgument, message, err)
}

// NotFound creates an AppError for a missing resource.
func NotFound(message string, err error) *AppError {
	return New(CodeNotFound, message, err)
}

// Conflict creates an AppError for a conflicting state transition.
func Conflict(message string, err error) *AppError {
	return New(CodeConflict, message, err)
}

// Internal creates an AppError for an unexpected internal failure.
func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, err)
}

// Unavailable creates an AppError for a dependency that is temporarily down.
func Unavailable(message string, err error) *AppError {
	return New(CodeUnavailable, message, err)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, errors.New(code, "", nil)) to match by code alone.
func (e *AppError) Is(target error) bool {
	var ae *AppError
	if errors.As(target, &ae) {
		return ae.Code == e.Code
	}
	return false
}

// Code extracts the error code from an error, or CodeInternal if it is not an AppError.
func Code(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// HTTPStatus maps an AppError's code to an HTTP status code.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// As is a re-export of the standard library's errors.As for callers that
// only import pkg/errors.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
