package workqueue

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
	return &InstrumentedStore{
		next:   next,
		tracer: otel.Tracer("pkg/workqueue"),
	}
}

func (s *InstrumentedStore) ProcessBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "workqueue.ProcessBatch", trace.WithAttributes(
		attribute.String("workqueue.instance_id", req.InstanceID),
		attribute.String("workqueue.service_name", req.ServiceName),
		attribute.Int("workqueue.new_outbox_messages", len(req.NewOutboxMessages)),
		attribute.Int("workqueue.new_inbox_messages", len(req.NewInboxMessages)),
	))
	defer span.End()

	result, err := s.next.ProcessBatch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "process_work_batch failed", "instance_id", req.InstanceID, "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("workqueue.claimed_outbox", len(result.OutboxWork)),
		attribute.Int("workqueue.claimed_inbox", len(result.InboxWork)),
	)
	span.SetStatus(codes.Ok, "batch processed")
	return result, nil
}

func (s *InstrumentedStore) IsDuplicate(ctx context.Context, messageID uuid.UUID) (bool, error) {
	dup, err := s.next.IsDuplicate(ctx, messageID)
	if err != nil {
		logger.L().ErrorContext(ctx, "dedup lookup failed", "message_id", messageID, "error", err)
		return false, err
	}
	return dup, nil
}

func (s *InstrumentedStore) Close() error {
	logger.L().Info("closing work queue store")
	return s.next.Close()
}

func (s *InstrumentedStore) Healthy(ctx context.Context) bool {
	return s.next.Healthy(ctx)
}
