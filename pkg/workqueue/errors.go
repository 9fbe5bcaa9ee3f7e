package workqueue

import "github.com/chris-alexander-pop/streamwork/pkg/errors"

// Error codes for work-coordinator operations.
const (
	CodeConnectionFailed = "WORKQUEUE_CONN_FAILED"
	CodeBatchFailed      = "WORKQUEUE_BATCH_FAILED"
	CodeInvalidRequest   = "WORKQUEUE_INVALID_REQUEST"
	CodeNotFound         = "WORKQUEUE_NOT_FOUND"
)

// ErrConnectionFailed creates an error for store connection failures.
func ErrConnectionFailed(err error) *errors.AppError {
	return errors.New(CodeConnectionFailed, "failed to connect to work queue store", err)
}

// ErrBatchFailed creates an error for a failed ProcessBatch call.
func ErrBatchFailed(err error) *errors.AppError {
	return errors.New(CodeBatchFailed, "process_work_batch failed", err)
}

// ErrInvalidRequest creates an error for a malformed BatchRequest.
func ErrInvalidRequest(msg string) *errors.AppError {
	return errors.New(CodeInvalidRequest, "invalid batch request: "+msg, nil)
}

// ErrNotFound creates an error for a referenced message id that does not
// exist in the store.
func ErrNotFound(messageID string) *errors.AppError {
	return errors.New(CodeNotFound, "message not found: "+messageID, nil)
}
