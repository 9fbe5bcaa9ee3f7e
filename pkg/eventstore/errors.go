package eventstore

import "github.com/chris-alexander-pop/streamwork/pkg/errors"

// Error codes for event store operations.
const (
	CodeConnectionFailed = "EVENTSTORE_CONN_FAILED"
	CodeAppendFailed     = "EVENTSTORE_APPEND_FAILED"
	CodeReadFailed       = "EVENTSTORE_READ_FAILED"
	CodeNotFound         = "EVENTSTORE_NOT_FOUND"
)

// ErrConnectionFailed creates an error for event store connection failures.
func ErrConnectionFailed(err error) *errors.AppError {
	return errors.New(CodeConnectionFailed, "failed to connect to event store", err)
}

// ErrAppendFailed creates an error for a failed append.
func ErrAppendFailed(err error) *errors.AppError {
	return errors.New(CodeAppendFailed, "failed to append event", err)
}

// ErrReadFailed creates an error for a failed read.
func ErrReadFailed(err error) *errors.AppError {
	return errors.New(CodeReadFailed, "failed to read events", err)
}

// ErrNotFound creates an error for a referenced event id that does not exist.
func ErrNotFound(eventID string) *errors.AppError {
	return errors.New(CodeNotFound, "event not found: "+eventID, nil)
}
