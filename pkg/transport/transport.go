package transport

import (
	"context"

	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
)

// Capability is a bit in the bitmap an adapter declares via Capabilities.
type Capability int

const (
	// PublishSubscribe is basic fire-and-forget pub/sub.
	PublishSubscribe Capability = 1 << iota
	// Reliable means the adapter acknowledges/redelivers on failure.
	Reliable
	// RequestResponse means the adapter implements Responder (Send).
	RequestResponse
)

// Has reports whether all bits in want are set in c.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Handler processes one envelope delivered by a Subscription. envelopeType
// is the out-of-band type discriminator carried on the transport metadata
// (spec.md §6), never inside the envelope payload itself. Returning nil
// acknowledges the message; returning an error triggers whatever
// redelivery semantics the adapter's Reliable capability provides.
type Handler func(ctx context.Context, env envelope.Envelope, envelopeType string) error

// Subscription is the handle returned by Subscribe. Pause/Resume/Dispose
// are idempotent, matching the inbox worker's graceful-drain usage.
type Subscription interface {
	Pause() error
	Resume() error
	Dispose() error
}

// Transport is the contract the outbox/inbox workers depend on. Workers
// never hold a concrete adapter type — only this interface (spec.md §9:
// break cyclic references by interface abstraction).
type Transport interface {
	// Publish delivers env to destination, carrying envelopeType out-of-band
	// as transport metadata (spec.md §6). Failure is returned as an error;
	// there is no implicit retry here, the outbox worker owns that policy.
	Publish(ctx context.Context, env envelope.Envelope, destination string, envelopeType string) error

	// Subscribe registers handler against destination and returns a
	// Subscription the caller controls.
	Subscribe(ctx context.Context, destination string, handler Handler) (Subscription, error)

	// Capabilities reports which optional behaviors this adapter supports.
	Capabilities() Capability

	// Ready reports whether the transport can currently accept Publish
	// calls. The outbox worker polls this before each Flush (spec.md §4.3
	// step 1).
	Ready(ctx context.Context) bool

	Close() error
}

// Responder is the optional request/reply extension (spec.md §6). Adapters
// that set RequestResponse in Capabilities implement it.
type Responder interface {
	Send(ctx context.Context, env envelope.Envelope, destination string) (envelope.Envelope, error)
}
