// Package envelope defines the transport wire format shared by outbox and
// inbox messages, and the explicit, process-constructed type registry that
// replaces the source's module-initialization side effects (spec.md §9,
// "Global static JSON registry").
package envelope

import (
	"encoding/json"
	"time"
)

// HopType distinguishes where in a message's lifecycle a Hop was recorded.
type HopType string

const (
	HopSent     HopType = "sent"
	HopReceived HopType = "received"
	HopHandled  HopType = "handled"
)

// Hop is one entry in an envelope's append-only trail: which service
// instance touched the message, when, and under what correlation/causation.
type Hop struct {
	Type            HopType   `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	ServiceInstance string    `json:"service_instance"`
	CorrelationID   string    `json:"correlation_id"`
	CausationID     string    `json:"causation_id,omitempty"`
}

// Envelope is the wire format carried by every outbox/inbox payload.
type Envelope struct {
	MessageID string          `json:"message_id"`
	Hops      []Hop           `json:"hops"`
	Payload   json.RawMessage `json:"payload"`
}

// WithHop returns a copy of e with hop appended to its trail. The trail is
// append-only: callers never mutate existing hops.
func (e Envelope) WithHop(hop Hop) Envelope {
	hops := make([]Hop, len(e.Hops), len(e.Hops)+1)
	copy(hops, e.Hops)
	hops = append(hops, hop)
	e.Hops = hops
	return e
}

// Marshal serializes the envelope to JSON.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses a JSON-encoded envelope.
func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}
