package eventstore

import (
	"context"

	"github.com/chris-alexander-pop/streamwork/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStore wraps a Store with logging and tracing.
type InstrumentedStore struct {
	next   Store
	tracer trace.Tracer
}

// NewInstrumentedStore creates a new InstrumentedStore wrapping the given store.
func NewInstrumentedStore(next Store) *InstrumentedStore {
	return &InstrumentedStore{next: next, tracer: otel.Tracer("pkg/eventstore")}
}

func (s *InstrumentedStore) Append(ctx context.Context, streamID, eventID uuid.UUID, envelopeType string, payload []byte) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "eventstore.Append", trace.WithAttributes(
		attribute.String("eventstore.stream_id", streamID.String()),
		attribute.String("eventstore.event_id", eventID.String()),
	))
	defer span.End()

	seq, err := s.next.Append(ctx, streamID, eventID, envelopeType, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "event append failed", "stream_id", streamID, "error", err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("eventstore.sequence", seq))
	span.SetStatus(codes.Ok, "event appended")
	return seq, nil
}

func (s *InstrumentedStore) Read(ctx context.Context, streamID uuid.UUID, fromSequence int64) ([]Record, error) {
	records, err := s.next.Read(ctx, streamID, fromSequence)
	if err != nil {
		logger.L().ErrorContext(ctx, "event read failed", "stream_id", streamID, "error", err)
		return nil, err
	}
	return records, nil
}

func (s *InstrumentedStore) GetLastSequence(ctx context.Context, streamID uuid.UUID) (int64, error) {
	return s.next.GetLastSequence(ctx, streamID)
}

func (s *InstrumentedStore) GetEventsBetween(ctx context.Context, streamID uuid.UUID, afterEventID *uuid.UUID, upToEventID uuid.UUID) ([]Record, error) {
	return s.next.GetEventsBetween(ctx, streamID, afterEventID, upToEventID)
}

func (s *InstrumentedStore) Close() error {
	logger.L().Info("closing event store")
	return s.next.Close()
}

func (s *InstrumentedStore) Healthy(ctx context.Context) bool {
	return s.next.Healthy(ctx)
}
