package transport

import (
	"context"

	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedTransport wraps a Transport with logging and tracing.
type InstrumentedTransport struct {
	next   Transport
	tracer trace.Tracer
}

// NewInstrumentedTransport creates a new InstrumentedTransport wrapping next.
func NewInstrumentedTransport(next Transport) *InstrumentedTransport {
	return &InstrumentedTransport{next: next, tracer: otel.Tracer("pkg/transport")}
}

func (t *InstrumentedTransport) Publish(ctx context.Context, env envelope.Envelope, destination string, envelopeType string) error {
	ctx, span := t.tracer.Start(ctx, "transport.Publish", trace.WithAttributes(
		attribute.String("transport.destination", destination),
		attribute.String("transport.message_id", env.MessageID),
		attribute.String("transport.envelope_type", envelopeType),
	))
	defer span.End()

	err := t.next.Publish(ctx, env, destination, envelopeType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "transport publish failed", "destination", destination, "error", err)
		return err
	}
	span.SetStatus(codes.Ok, "published")
	return nil
}

func (t *InstrumentedTransport) Subscribe(ctx context.Context, destination string, handler Handler) (Subscription, error) {
	logger.L().InfoContext(ctx, "subscribing", "destination", destination)
	return t.next.Subscribe(ctx, destination, handler)
}

func (t *InstrumentedTransport) Capabilities() Capability {
	return t.next.Capabilities()
}

func (t *InstrumentedTransport) Ready(ctx context.Context) bool {
	return t.next.Ready(ctx)
}

func (t *InstrumentedTransport) Close() error {
	logger.L().Info("closing transport")
	return t.next.Close()
}
