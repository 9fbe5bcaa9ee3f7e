package outbox

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/concurrency"
	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/logger"
	"github.com/chris-alexander-pop/streamwork/pkg/resilience"
	"github.com/chris-alexander-pop/streamwork/pkg/strategy"
	"github.com/chris-alexander-pop/streamwork/pkg/transport"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
)

// Config tunes the worker's poll/retry cadence.
type Config struct {
	// ReadyPollInterval is how often Ready is rechecked while not ready.
	ReadyPollInterval time.Duration
	// IdleSleep is how long to sleep after a flush returns no work.
	IdleSleep time.Duration
	// ShutdownDrain bounds the final Flush that reports whatever completed
	// once the worker is cancelled.
	ShutdownDrain time.Duration
	// FlushRetry governs backoff on a failed Flush (infrastructure error,
	// not a per-message publish failure).
	FlushRetry resilience.RetryConfig
	// MaxConcurrency bounds how many messages in a claimed batch are
	// published at once.
	MaxConcurrency int
}

// DefaultConfig returns the spec's named defaults (spec.md §4.3).
func DefaultConfig() Config {
	return Config{
		ReadyPollInterval: time.Second,
		IdleSleep:         50 * time.Millisecond,
		ShutdownDrain:     5 * time.Second,
		FlushRetry:        resilience.DefaultRetryConfig(),
		MaxConcurrency:    32,
	}
}

// Worker is the Outbox Publisher Worker. It depends only on a Strategy and
// a Transport — no back-pointer to the coordinator or store (spec.md §9).
type Worker struct {
	strategy  *strategy.Strategy
	transport transport.Transport
	cfg       Config
}

// New builds a Worker over strategy publishing through transport.
func New(strategy *strategy.Strategy, transport transport.Transport, cfg Config) *Worker {
	return &Worker{strategy: strategy, transport: transport, cfg: cfg}
}

// Run loops until ctx is cancelled. See spec.md §4.3 for the five-step loop.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			w.drain(context.Background())
			return
		}

		if !w.waitReady(ctx) {
			w.drain(context.Background())
			return
		}

		result, err := w.flush(ctx)
		if err != nil {
			logger.L().ErrorContext(ctx, "outbox flush failed", "error", err)
			continue
		}

		if len(result.OutboxWork) == 0 {
			select {
			case <-ctx.Done():
				w.drain(context.Background())
				return
			case <-time.After(w.cfg.IdleSleep):
			}
			continue
		}

		w.publishBatch(ctx, result.OutboxWork)
	}
}

// waitReady blocks until the transport reports ready or ctx is cancelled.
func (w *Worker) waitReady(ctx context.Context) bool {
	for !w.transport.Ready(ctx) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.cfg.ReadyPollInterval):
		}
	}
	return true
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

// publishBatch publishes every message in the batch concurrently, bounded by
// MaxConcurrency; ordering within a stream is the coordinator's guarantee,
// not the worker's.
func (w *Worker) publishBatch(ctx context.Context, work []workqueue.OutboxMessage) {
	workers := w.cfg.MaxConcurrency
	if workers <= 0 || workers > len(work) {
		workers = len(work)
	}

	pool := concurrency.NewWorkerPool(workers, len(work))
	pool.Start(ctx)
	for i := range work {
		msg := work[i]
		pool.Submit(func(ctx context.Context) {
			defer func() {
				if r := recover(); r != nil {
					logger.L().ErrorContext(ctx, "panic publishing outbox message", "message_id", msg.MessageID, "panic", r)
				}
			}()
			w.publishOne(ctx, msg)
		})
	}
	pool.Stop()
}

// publishOne publishes a single claimed message and queues the resulting
// completion or failure.
func (w *Worker) publishOne(ctx context.Context, msg workqueue.OutboxMessage) {
	env, err := envelope.Unmarshal(msg.Envelope)
	if err != nil {
		w.strategy.QueueOutboxFailure(workqueue.Failure{
			MessageID:       msg.MessageID,
			CompletedStatus: workqueue.Stored,
			Error:           "failed to decode envelope: " + err.Error(),
		})
		return
	}
	env = env.WithHop(envelope.Hop{Type: envelope.HopSent, Timestamp: time.Now()})

	if !w.transport.Ready(ctx) {
		w.strategy.QueueOutboxFailure(workqueue.Failure{
			MessageID:       msg.MessageID,
			CompletedStatus: msg.Status,
			Error:           transport.ErrNotReady(msg.Destination).Error(),
		})
		return
	}

	if err := w.transport.Publish(ctx, env, msg.Destination, msg.EnvelopeType); err != nil {
		w.strategy.QueueOutboxFailure(workqueue.Failure{
			MessageID:       msg.MessageID,
			CompletedStatus: msg.Status,
			Error:           err.Error(),
		})
		return
	}

	w.strategy.QueueOutboxCompletion(workqueue.Completion{
		MessageID: msg.MessageID,
		Status:    workqueue.Published,
	})
}

// drain reports whatever completed via one last Flush, bounded by
// ShutdownDrain. It gives publishes no extra time: Run reaches drain only
// after publishBatch has returned, and pool tasks not yet started when ctx
// was cancelled may have been skipped. Any lease left unreleased simply
// expires and is reclaimed by the next owner.
func (w *Worker) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(ctx, w.cfg.ShutdownDrain)
	defer cancel()

	if _, err := w.strategy.Flush(drainCtx); err != nil {
		logger.L().ErrorContext(drainCtx, "final outbox flush on shutdown failed", "error", err)
	}
}
