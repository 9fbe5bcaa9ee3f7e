package dispatch

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/streamwork/pkg/errors"
	"github.com/google/uuid"
)

// OutgoingEvent is one event a handler wants appended to the event store
// and/or enqueued on the outbox as a side effect of handling a message.
type OutgoingEvent struct {
	StreamID     uuid.UUID
	EnvelopeType string
	Payload      []byte
	// Destinations is empty when the event is event-store-only (no
	// outbound publish requested).
	Destinations []string
}

// HandlerResult is the tagged variant every handler returns: its own
// result value plus the explicit list of events it produced. There is no
// reflection-based cascade walk; Events is the whole cascade.
type HandlerResult struct {
	Primary interface{}
	Events  []OutgoingEvent
}

// Handler processes one decoded inbox payload and returns its result, or an
// error which the inbox worker turns into a Failure report.
type Handler func(ctx context.Context, payload interface{}) (HandlerResult, error)

// Registry is the (message_type_tag, handler) table built once at startup
// (spec.md §9: static construction, not runtime reflection) and handed to
// the inbox worker.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates typeTag with handler.
func (r *Registry) Register(typeTag string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typeTag] = handler
}

// Dispatcher routes decoded payloads to their registered handler by type tag.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher builds a Dispatcher over registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch invokes the handler registered for typeTag. Returns an error if
// no handler is registered, or whatever error the handler itself returns.
func (d *Dispatcher) Dispatch(ctx context.Context, typeTag string, payload interface{}) (HandlerResult, error) {
	d.registry.mu.RLock()
	handler, ok := d.registry.handlers[typeTag]
	d.registry.mu.RUnlock()
	if !ok {
		return HandlerResult{}, errors.InvalidArgument("no handler registered for message type: "+typeTag, nil)
	}
	return handler(ctx, payload)
}
