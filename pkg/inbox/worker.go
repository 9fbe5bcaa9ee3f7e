package inbox

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/concurrency"
	"github.com/chris-alexander-pop/streamwork/pkg/dispatch"
	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/eventstore"
	"github.com/chris-alexander-pop/streamwork/pkg/logger"
	"github.com/chris-alexander-pop/streamwork/pkg/resilience"
	"github.com/chris-alexander-pop/streamwork/pkg/strategy"
	"github.com/chris-alexander-pop/streamwork/pkg/transport"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	"github.com/google/uuid"
)

// Config tunes the worker's poll/retry/concurrency cadence. Mirrors
// outbox.Config in shape.
type Config struct {
	// IdleSleep is how long to sleep after a flush claims no inbox work.
	IdleSleep time.Duration
	// ShutdownDrain bounds how long a final flush gets on shutdown.
	ShutdownDrain time.Duration
	// FlushRetry governs backoff on a failed Flush.
	FlushRetry resilience.RetryConfig
	// MaxConcurrency bounds how many claimed messages are handled at once.
	MaxConcurrency int64
}

// DefaultConfig returns sane defaults matching outbox.DefaultConfig.
func DefaultConfig() Config {
	return Config{
		IdleSleep:      50 * time.Millisecond,
		ShutdownDrain:  5 * time.Second,
		FlushRetry:     resilience.DefaultRetryConfig(),
		MaxConcurrency: 32,
	}
}

// Deps are the Worker's collaborators. EventStore and ScopeFactory are
// optional: a nil EventStore drops event-store-only cascade events (logged,
// not silently lost), a nil ScopeFactory defaults to a no-op scope.
type Deps struct {
	Strategy     *strategy.Strategy
	Transport    transport.Transport
	Dedup        Deduplicator
	Registry     *envelope.Registry
	Dispatcher   *dispatch.Dispatcher
	EventStore   eventstore.Store
	Destinations []string
	ScopeFactory ScopeFactory
}

// Worker is the Inbox Consumer Worker (spec.md §4.4). Delivery is
// push-driven: pkg/transport calls onDeliver on every message, which does
// nothing but dedup-check and durably queue a NewInboxMessage. Handler
// invocation happens only against rows a Flush call actually claims under
// lease, in Run's poll loop — the same claim-then-process shape as
// pkg/outbox. This is what lets a crash between delivery and completion be
// recovered by any surviving instance instead of being lost with the one
// that received it.
type Worker struct {
	strategy     *strategy.Strategy
	transport    transport.Transport
	dedup        Deduplicator
	registry     *envelope.Registry
	dispatcher   *dispatch.Dispatcher
	eventStore   eventstore.Store
	destinations []string
	scopeFactory ScopeFactory
	cfg          Config
	sem          *concurrency.Semaphore
}

// New builds a Worker from deps and cfg.
func New(deps Deps, cfg Config) *Worker {
	scopeFactory := deps.ScopeFactory
	if scopeFactory == nil {
		scopeFactory = defaultScopeFactory
	}
	return &Worker{
		strategy:     deps.Strategy,
		transport:    deps.Transport,
		dedup:        deps.Dedup,
		registry:     deps.Registry,
		dispatcher:   deps.Dispatcher,
		eventStore:   deps.EventStore,
		destinations: deps.Destinations,
		scopeFactory: scopeFactory,
		cfg:          cfg,
		sem:          concurrency.NewSemaphore(cfg.MaxConcurrency),
	}
}

// Run subscribes to every configured destination and loops claiming and
// processing inbox work until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	subs, err := w.subscribeAll(ctx)
	if err != nil {
		return err
	}
	defer w.disposeAll(subs)

	for {
		if ctx.Err() != nil {
			w.drain(context.Background())
			return nil
		}

		result, err := w.flush(ctx)
		if err != nil {
			logger.L().ErrorContext(ctx, "inbox flush failed", "error", err)
			continue
		}

		if len(result.InboxWork) == 0 {
			select {
			case <-ctx.Done():
				w.drain(context.Background())
				return nil
			case <-time.After(w.cfg.IdleSleep):
			}
			continue
		}

		w.processBatch(ctx, result.InboxWork)
	}
}

// subscribeAll registers onDeliver against every configured destination,
// unwinding already-established subscriptions if a later one fails.
func (w *Worker) subscribeAll(ctx context.Context) ([]transport.Subscription, error) {
	subs := make([]transport.Subscription, 0, len(w.destinations))
	for _, dest := range w.destinations {
		destination := dest
		sub, err := w.transport.Subscribe(ctx, destination, func(ctx context.Context, env envelope.Envelope, envelopeType string) error {
			return w.onDeliver(ctx, env, envelopeType, destination)
		})
		if err != nil {
			w.disposeAll(subs)
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (w *Worker) disposeAll(subs []transport.Subscription) {
	for _, sub := range subs {
		if err := sub.Dispose(); err != nil {
			logger.L().ErrorContext(context.Background(), "failed to dispose inbox subscription", "error", err)
		}
	}
}

// onDeliver is the transport.Handler for every destination this worker
// subscribes to (spec.md §4.4 steps 1-3). It never invokes a handler
// itself; it only dedups and queues the row Run's loop will later claim and
// process.
func (w *Worker) onDeliver(ctx context.Context, env envelope.Envelope, envelopeType, destination string) error {
	messageID, err := uuid.Parse(env.MessageID)
	if err != nil {
		logger.L().ErrorContext(ctx, "inbox delivery has unparseable message id, dropping", "message_id", env.MessageID, "error", err)
		return nil
	}

	dup, err := w.dedup.IsDuplicate(ctx, messageID)
	if err != nil {
		return err
	}
	if dup {
		return nil
	}

	data, err := env.Marshal()
	if err != nil {
		return err
	}

	w.strategy.QueueInboxMessage(workqueue.NewMessage{
		MessageID:    messageID,
		HandlerName:  destination,
		EnvelopeType: envelopeType,
		Envelope:     data,
		StreamID:     w.streamIDFor(messageID, envelopeType, env),
		CreatedAt:    time.Now(),
	})
	return nil
}

// streamIDFor best-effort decodes payload to extract its stream id. A
// decode failure here is not reported as a Failure — it is recorded again,
// durably, when Run's loop decodes the claimed row (spec.md §4.4 step 4) —
// this is purely about choosing a partition key before insertion.
func (w *Worker) streamIDFor(messageID uuid.UUID, envelopeType string, env envelope.Envelope) uuid.UUID {
	decoded, err := w.registry.Decode(envelopeType, env.Payload)
	if err != nil {
		return messageID
	}
	if sk, ok := decoded.(StreamKeyed); ok {
		return sk.StreamID()
	}
	return messageID
}

func (w *Worker) flush(ctx context.Context) (*workqueue.BatchResult, error) {
	var result *workqueue.BatchResult
	err := resilience.Retry(ctx, w.cfg.FlushRetry, func(ctx context.Context) error {
		r, err := w.strategy.Flush(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// processBatch handles every claimed row concurrently, bounded by sem.
func (w *Worker) processBatch(ctx context.Context, work []workqueue.InboxMessage) {
	concurrency.FanOut(ctx, len(work), func(i int) {
		msg := work[i]
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer w.sem.Release(1)
		w.handleOne(ctx, msg)
	})
}

// handleOne decodes, dispatches, and reports the outcome of one claimed
// inbox row (spec.md §4.4 steps 2, 4, 5). The scope is opened before the
// handler runs and closed right after, on every exit path.
func (w *Worker) handleOne(ctx context.Context, msg workqueue.InboxMessage) {
	scopeCtx, scope, err := w.scopeFactory(ctx)
	if err != nil {
		w.strategy.QueueInboxFailure(workqueue.Failure{
			MessageID:       msg.MessageID,
			CompletedStatus: workqueue.Stored,
			Error:           "failed to open scope: " + err.Error(),
		})
		return
	}
	defer func() {
		if err := scope.Close(); err != nil {
			logger.L().ErrorContext(ctx, "failed to close inbox scope", "message_id", msg.MessageID, "error", err)
		}
	}()

	env, err := envelope.Unmarshal(msg.Envelope)
	if err != nil {
		w.strategy.QueueInboxFailure(workqueue.Failure{
			MessageID:       msg.MessageID,
			CompletedStatus: workqueue.Stored,
			Error:           "failed to decode envelope: " + err.Error(),
		})
		return
	}

	payload, err := w.registry.Decode(msg.EnvelopeType, env.Payload)
	if err != nil {
		w.strategy.QueueInboxFailure(workqueue.Failure{
			MessageID:       msg.MessageID,
			CompletedStatus: workqueue.Stored,
			Error:           err.Error(),
		})
		return
	}

	result, err := w.dispatcher.Dispatch(scopeCtx, msg.EnvelopeType, payload)
	if err != nil {
		w.strategy.QueueInboxFailure(workqueue.Failure{
			MessageID:       msg.MessageID,
			CompletedStatus: workqueue.Stored,
			Error:           err.Error(),
		})
		return
	}

	w.cascade(scopeCtx, msg.StreamID, result.Events)

	w.strategy.QueueInboxCompletion(workqueue.Completion{
		MessageID: msg.MessageID,
		Status:    workqueue.FullyCompleted,
	})
}

// cascade walks the handler's produced events, appending event-store-only
// ones and queuing the rest as fresh outbox messages — one per destination
// (spec.md §9: explicit cascade walk, no reflection). These land in the
// same Strategy as the completion above, so they commit in the same Flush
// call that reports the triggering message done.
func (w *Worker) cascade(ctx context.Context, fallbackStreamID uuid.UUID, events []dispatch.OutgoingEvent) {
	for _, ev := range events {
		streamID := ev.StreamID
		if streamID == uuid.Nil {
			streamID = fallbackStreamID
		}

		if len(ev.Destinations) == 0 {
			if w.eventStore == nil {
				logger.L().WarnContext(ctx, "dropping event-store-only cascade event, no event store configured", "stream_id", streamID, "envelope_type", ev.EnvelopeType)
				continue
			}
			if _, err := w.eventStore.Append(ctx, streamID, uuid.Must(uuid.NewV7()), ev.EnvelopeType, ev.Payload); err != nil {
				logger.L().ErrorContext(ctx, "failed to append cascade event", "stream_id", streamID, "error", err)
			}
			continue
		}

		for _, dest := range ev.Destinations {
			messageID := uuid.Must(uuid.NewV7())
			data, err := envelope.Envelope{MessageID: messageID.String(), Payload: ev.Payload}.Marshal()
			if err != nil {
				logger.L().ErrorContext(ctx, "failed to marshal cascade envelope", "error", err)
				continue
			}
			w.strategy.QueueOutboxMessage(workqueue.NewMessage{
				MessageID:    messageID,
				Destination:  dest,
				EnvelopeType: ev.EnvelopeType,
				Envelope:     data,
				StreamID:     streamID,
				CreatedAt:    time.Now(),
			})
		}
	}
}

// drain gives a final flush a bounded window to report whatever completed.
// Any row still unleased or mid-handler when this fires is reclaimed by the
// next owner through the ordinary lease-expiry path.
func (w *Worker) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(ctx, w.cfg.ShutdownDrain)
	defer cancel()

	if _, err := w.strategy.Flush(drainCtx); err != nil {
		logger.L().ErrorContext(drainCtx, "final inbox flush on shutdown failed", "error", err)
	}
}
