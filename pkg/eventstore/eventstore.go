package eventstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one appended event.
type Record struct {
	StreamID     uuid.UUID
	Sequence     int64
	EventID      uuid.UUID
	EnvelopeType string
	Payload      []byte
	CreatedAt    time.Time
}

// Store is the append-only event log contract (spec.md §4.5).
type Store interface {
	// Append allocates the next sequence number for streamID and stores the
	// record. The returned int64 is the sequence assigned.
	Append(ctx context.Context, streamID uuid.UUID, eventID uuid.UUID, envelopeType string, payload []byte) (int64, error)

	// Read returns records of streamID with Sequence >= fromSequence,
	// ascending.
	Read(ctx context.Context, streamID uuid.UUID, fromSequence int64) ([]Record, error)

	// GetLastSequence returns the highest sequence stored for streamID, or
	// -1 if the stream is empty.
	GetLastSequence(ctx context.Context, streamID uuid.UUID) (int64, error)

	// GetEventsBetween returns events of streamID strictly after
	// afterEventID (or from the start if nil) and up to and including
	// upToEventID, ordered by sequence.
	GetEventsBetween(ctx context.Context, streamID uuid.UUID, afterEventID *uuid.UUID, upToEventID uuid.UUID) ([]Record, error)

	Close() error
	Healthy(ctx context.Context) bool
}
