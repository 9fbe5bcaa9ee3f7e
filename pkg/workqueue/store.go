package workqueue

import (
	"context"

	"github.com/google/uuid"
)

// Store is the durable-store contract: one atomic unit-of-work call plus
// the dedup lookup the inbox worker needs before it ever touches the
// coordinator strategy.
type Store interface {
	// ProcessBatch runs the full process_work_batch protocol (spec.md §4.1)
	// in a single transaction and returns the batch of work this instance
	// may now execute.
	ProcessBatch(ctx context.Context, req BatchRequest) (*BatchResult, error)

	// IsDuplicate reports whether messageID has already been recorded in
	// MessageDeduplication. When it has not, IsDuplicate records it, so a
	// second call for the same id reports true.
	IsDuplicate(ctx context.Context, messageID uuid.UUID) (bool, error)

	// Close releases the store's underlying connection.
	Close() error

	// Healthy reports whether the store can currently serve requests.
	Healthy(ctx context.Context) bool
}
