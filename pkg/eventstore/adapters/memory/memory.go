// Package memory implements pkg/eventstore.Store in-process, for tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/eventstore"
	"github.com/google/uuid"
)

// Store is an in-memory eventstore.Store.
type Store struct {
	mu      sync.RWMutex
	streams map[uuid.UUID][]eventstore.Record
	closed  bool
}

// New returns an empty in-memory event store.
func New() *Store {
	return &Store{streams: make(map[uuid.UUID][]eventstore.Record)}
}

func (s *Store) Append(ctx context.Context, streamID, eventID uuid.UUID, envelopeType string, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.streams[streamID]
	seq := int64(len(records))
	records = append(records, eventstore.Record{
		StreamID:     streamID,
		Sequence:     seq,
		EventID:      eventID,
		EnvelopeType: envelopeType,
		Payload:      payload,
		CreatedAt:    time.Now(),
	})
	s.streams[streamID] = records
	return seq, nil
}

func (s *Store) Read(ctx context.Context, streamID uuid.UUID, fromSequence int64) ([]eventstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.streams[streamID]
	out := make([]eventstore.Record, 0, len(records))
	for _, r := range records {
		if r.Sequence >= fromSequence {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) GetLastSequence(ctx context.Context, streamID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.streams[streamID]
	if len(records) == 0 {
		return -1, nil
	}
	return records[len(records)-1].Sequence, nil
}

// GetEventsBetween walks records in append (sequence) order rather than by
// decoding each EventID's time-ordered bits; the two agree for a single
// stream since sequence is assigned monotonically at append time in the
// same order the ids were minted (spec.md §4.5: "ordered by time-ordered
// id").
func (s *Store) GetEventsBetween(ctx context.Context, streamID uuid.UUID, afterEventID *uuid.UUID, upToEventID uuid.UUID) ([]eventstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.streams[streamID]
	started := afterEventID == nil
	out := make([]eventstore.Record, 0, len(records))
	for _, r := range records {
		if !started {
			if r.EventID == *afterEventID {
				started = true
			}
			continue
		}
		out = append(out, r)
		if r.EventID == upToEventID {
			break
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Healthy(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}
