package inbox

import (
	"context"

	"github.com/google/uuid"
)

// Deduplicator is the narrow slice of workqueue.Store the inbox worker
// needs: the dedup lookup, checked before a delivery ever touches the
// coordinator strategy (spec.md §4.4 step 3). Kept as its own interface so
// this package never depends on pkg/workqueue's full Store surface
// (spec.md §9: break cyclic references by interface abstraction).
type Deduplicator interface {
	IsDuplicate(ctx context.Context, messageID uuid.UUID) (bool, error)
}

// StreamKeyed is implemented by a decoded payload that carries its own
// stream id, the key inbox ordering partitions on (spec.md §3). Payloads
// that don't implement it fall back to a stream of one: the message's own
// id, which still dedups and completes correctly but claims no
// cross-message ordering guarantee. The wire envelope (spec.md §6) has no
// stream_id field of its own, so this is the registry-driven extraction
// point for it.
type StreamKeyed interface {
	StreamID() uuid.UUID
}

// Scope is a per-message resource group — a DB handle, read-model
// writers — whose lifetime the worker controls deterministically: opened
// before the handler runs, closed right after, on every exit path
// (spec.md §9, "per-message scope ≈ arena + defer").
type Scope interface {
	Close() error
}

// noopScope is the default Scope when the caller has no scoped resources
// to manage.
type noopScope struct{}

func (noopScope) Close() error { return nil }

// ScopeFactory opens a Scope for one message. The returned context carries
// whatever scoped values the factory attaches (e.g. a request-bound DB
// handle) and is the context the dispatcher's handler actually runs under.
type ScopeFactory func(ctx context.Context) (context.Context, Scope, error)

func defaultScopeFactory(ctx context.Context) (context.Context, Scope, error) {
	return ctx, noopScope{}, nil
}
