package outbox_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/coordinator"
	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/outbox"
	"github.com/chris-alexander-pop/streamwork/pkg/resilience"
	"github.com/chris-alexander-pop/streamwork/pkg/strategy"
	"github.com/chris-alexander-pop/streamwork/pkg/transport"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeCoordinator hands back one batch of work on its first Flush call and
// records every completion/failure reported on later calls.
type fakeCoordinator struct {
	mu       sync.Mutex
	batch    []workqueue.OutboxMessage
	served   bool
	requests []coordinator.Request
}

func (f *fakeCoordinator) Flush(ctx context.Context, req coordinator.Request) (*workqueue.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if f.served {
		return &workqueue.BatchResult{}, nil
	}
	f.served = true
	return &workqueue.BatchResult{OutboxWork: f.batch}, nil
}

// lastReport returns the most recent request that carried an outbox
// completion or failure; the idle and shutdown flushes after it carry none.
func (f *fakeCoordinator) lastReport() coordinator.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if len(f.requests[i].OutboxCompletions) > 0 || len(f.requests[i].OutboxFailures) > 0 {
			return f.requests[i]
		}
	}
	return coordinator.Request{}
}

// fakeTransport is always ready and publishes to destinations named in
// failDestinations by returning an error instead of succeeding.
type fakeTransport struct {
	mu               sync.Mutex
	failDestinations map[string]bool
	published        []string
}

func (t *fakeTransport) Publish(ctx context.Context, env envelope.Envelope, destination, envelopeType string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failDestinations[destination] {
		return transport.ErrNotReady(destination)
	}
	t.published = append(t.published, destination)
	return nil
}

func (t *fakeTransport) Subscribe(ctx context.Context, destination string, handler transport.Handler) (transport.Subscription, error) {
	return nil, nil
}

func (t *fakeTransport) Capabilities() transport.Capability { return transport.PublishSubscribe }
func (t *fakeTransport) Ready(ctx context.Context) bool     { return true }
func (t *fakeTransport) Close() error                       { return nil }

func newEnvelope(t *testing.T, messageID uuid.UUID) []byte {
	t.Helper()
	env := envelope.Envelope{MessageID: messageID.String(), Payload: []byte(`{}`)}
	data, err := env.Marshal()
	require.NoError(t, err)
	return data
}

func TestWorker_PublishesClaimedBatchAndQueuesCompletion(t *testing.T) {
	msgID := uuid.New()
	coord := &fakeCoordinator{batch: []workqueue.OutboxMessage{
		{MessageID: msgID, Destination: "orders", Envelope: newEnvelope(t, msgID)},
	}}
	tr := &fakeTransport{failDestinations: map[string]bool{}}
	s := strategy.New(coord)
	w := outbox.New(s, tr, outbox.Config{
		ReadyPollInterval: time.Millisecond,
		IdleSleep:         time.Millisecond,
		ShutdownDrain:     time.Second,
		FlushRetry:        resilience.RetryConfig{MaxAttempts: 1},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	require.Contains(t, tr.published, "orders")

	req := coord.lastReport()
	require.Len(t, req.OutboxCompletions, 1)
	require.Equal(t, msgID, req.OutboxCompletions[0].MessageID)
	require.Equal(t, workqueue.Published, req.OutboxCompletions[0].Status)
}

func TestWorker_QueuesFailureOnPublishError(t *testing.T) {
	msgID := uuid.New()
	coord := &fakeCoordinator{batch: []workqueue.OutboxMessage{
		{MessageID: msgID, Destination: "orders", Status: workqueue.Stored, Envelope: newEnvelope(t, msgID)},
	}}
	tr := &fakeTransport{failDestinations: map[string]bool{"orders": true}}
	s := strategy.New(coord)
	w := outbox.New(s, tr, outbox.Config{
		ReadyPollInterval: time.Millisecond,
		IdleSleep:         time.Millisecond,
		ShutdownDrain:     time.Second,
		FlushRetry:        resilience.RetryConfig{MaxAttempts: 1},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	req := coord.lastReport()
	require.Empty(t, req.OutboxCompletions)
	require.Len(t, req.OutboxFailures, 1)
	require.Equal(t, msgID, req.OutboxFailures[0].MessageID)
	require.Equal(t, workqueue.Stored, req.OutboxFailures[0].CompletedStatus)
}
