package transport

import "github.com/chris-alexander-pop/streamwork/pkg/errors"

// Error codes for transport operations, matching the error kinds in
// spec.md §7.
const (
	CodeNotReady        = "TRANSPORT_NOT_READY"
	CodePublishFailed   = "TRANSPORT_EXCEPTION"
	CodeSubscribeFailed = "TRANSPORT_SUBSCRIBE_FAILED"
	CodeUnsupported     = "TRANSPORT_UNSUPPORTED"
	CodeConnectionFailed = "TRANSPORT_CONN_FAILED"
)

// ErrNotReady creates an error for TransportNotReady (spec.md §7): the
// adapter rejected a publish because it is not currently ready.
func ErrNotReady(destination string) *errors.AppError {
	return errors.Unavailable("transport not ready for destination: "+destination, nil)
}

// ErrPublishFailed creates an error for TransportException: publish threw.
func ErrPublishFailed(err error) *errors.AppError {
	return errors.New(CodePublishFailed, "transport publish failed", err)
}

// ErrSubscribeFailed creates an error for a failed Subscribe call.
func ErrSubscribeFailed(err error) *errors.AppError {
	return errors.New(CodeSubscribeFailed, "transport subscribe failed", err)
}

// ErrUnsupported creates an error for an operation the adapter's
// Capabilities bitmap does not declare (e.g. Send without RequestResponse).
func ErrUnsupported(operation string) *errors.AppError {
	return errors.New(CodeUnsupported, "transport does not support: "+operation, nil)
}

// ErrConnectionFailed creates an error for adapter connection failures.
func ErrConnectionFailed(err error) *errors.AppError {
	return errors.New(CodeConnectionFailed, "failed to connect to transport", err)
}
