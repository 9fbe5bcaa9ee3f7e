package inbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/coordinator"
	"github.com/chris-alexander-pop/streamwork/pkg/dispatch"
	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/inbox"
	"github.com/chris-alexander-pop/streamwork/pkg/resilience"
	"github.com/chris-alexander-pop/streamwork/pkg/strategy"
	transportmemory "github.com/chris-alexander-pop/streamwork/pkg/transport/adapters/memory"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	workqueuememory "github.com/chris-alexander-pop/streamwork/pkg/workqueue/adapters/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type orderPlaced struct {
	OrderID string `json:"order_id"`
}

func newHarness() (*workqueuememory.Store, *transportmemory.Transport, *strategy.Strategy) {
	store := workqueuememory.New()
	tr := transportmemory.New()
	client := coordinator.New(store, coordinator.Identity{InstanceID: "i1", ServiceName: "svc"}, workqueue.Config{})
	return store, tr, strategy.New(client)
}

func testConfig() inbox.Config {
	return inbox.Config{
		IdleSleep:      5 * time.Millisecond,
		ShutdownDrain:  time.Second,
		FlushRetry:     resilience.RetryConfig{MaxAttempts: 1},
		MaxConcurrency: 4,
	}
}

func publishOrder(t *testing.T, tr *transportmemory.Transport, messageID uuid.UUID, envelopeType, orderID string) {
	t.Helper()
	payload, err := json.Marshal(orderPlaced{OrderID: orderID})
	require.NoError(t, err)
	env := envelope.Envelope{MessageID: messageID.String(), Payload: payload}
	require.NoError(t, tr.Publish(context.Background(), env, "orders", envelopeType))
}

func runWorker(t *testing.T, w *inbox.Worker) (cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- w.Run(ctx) }()
	return cancelFn, result
}

func TestWorker_HappyPath_DispatchesAndCascades(t *testing.T) {
	store, tr, strat := newHarness()

	reg := envelope.NewRegistry()
	envelope.RegisterJSON[orderPlaced](reg, "order.placed")

	handled := make(chan string, 1)
	dispatchReg := dispatch.NewRegistry()
	dispatchReg.Register("order.placed", func(ctx context.Context, payload interface{}) (dispatch.HandlerResult, error) {
		order := payload.(*orderPlaced)
		handled <- order.OrderID
		return dispatch.HandlerResult{
			Events: []dispatch.OutgoingEvent{
				{EnvelopeType: "order.confirmed", Payload: []byte(`{}`), Destinations: []string{"confirmations"}},
			},
		}, nil
	})

	w := inbox.New(inbox.Deps{
		Strategy:     strat,
		Transport:    tr,
		Dedup:        store,
		Registry:     reg,
		Dispatcher:   dispatch.NewDispatcher(dispatchReg),
		Destinations: []string{"orders"},
	}, testConfig())

	cancel, done := runWorker(t, w)

	publishOrder(t, tr, uuid.New(), "order.placed", "ord-1")

	select {
	case orderID := <-handled:
		require.Equal(t, "ord-1", orderID)
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}

	require.Eventually(t, func() bool {
		res, err := store.ProcessBatch(context.Background(), workqueue.BatchRequest{InstanceID: "i1", ServiceName: "svc"})
		if err != nil {
			return false
		}
		for _, m := range res.OutboxWork {
			if m.EnvelopeType == "order.confirmed" && m.Destination == "confirmations" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond, "cascade event never reached the outbox")

	cancel()
	require.NoError(t, <-done)
}

func TestWorker_Dedup_HandlerInvokedOnce(t *testing.T) {
	store, tr, strat := newHarness()

	reg := envelope.NewRegistry()
	envelope.RegisterJSON[orderPlaced](reg, "order.placed")

	var calls int32
	dispatchReg := dispatch.NewRegistry()
	dispatchReg.Register("order.placed", func(ctx context.Context, payload interface{}) (dispatch.HandlerResult, error) {
		atomic.AddInt32(&calls, 1)
		return dispatch.HandlerResult{}, nil
	})

	w := inbox.New(inbox.Deps{
		Strategy:     strat,
		Transport:    tr,
		Dedup:        store,
		Registry:     reg,
		Dispatcher:   dispatch.NewDispatcher(dispatchReg),
		Destinations: []string{"orders"},
	}, testConfig())

	cancel, done := runWorker(t, w)

	messageID := uuid.New()
	publishOrder(t, tr, messageID, "order.placed", "dup")
	publishOrder(t, tr, messageID, "order.placed", "dup")

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 1
	}, time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "a duplicate delivery must never reach the handler twice")

	cancel()
	require.NoError(t, <-done)
}

func TestWorker_HandlerError_NoCascade(t *testing.T) {
	store, tr, strat := newHarness()

	reg := envelope.NewRegistry()
	envelope.RegisterJSON[orderPlaced](reg, "order.placed")

	dispatchReg := dispatch.NewRegistry()
	dispatchReg.Register("order.placed", func(ctx context.Context, payload interface{}) (dispatch.HandlerResult, error) {
		return dispatch.HandlerResult{}, errors.New("boom")
	})

	w := inbox.New(inbox.Deps{
		Strategy:     strat,
		Transport:    tr,
		Dedup:        store,
		Registry:     reg,
		Dispatcher:   dispatch.NewDispatcher(dispatchReg),
		Destinations: []string{"orders"},
	}, testConfig())

	cancel, done := runWorker(t, w)

	messageID := uuid.New()
	publishOrder(t, tr, messageID, "order.placed", "bad")

	require.Eventually(t, func() bool {
		dup, err := store.IsDuplicate(context.Background(), messageID)
		return err == nil && dup
	}, time.Second, 10*time.Millisecond, "message was never durably recorded")

	time.Sleep(150 * time.Millisecond)
	res, err := store.ProcessBatch(context.Background(), workqueue.BatchRequest{InstanceID: "i1", ServiceName: "svc"})
	require.NoError(t, err)
	require.Empty(t, res.OutboxWork, "a failed handler must not cascade events")

	cancel()
	require.NoError(t, <-done)
}

func TestWorker_UnregisteredEnvelopeType_FailsWithoutPanic(t *testing.T) {
	store, tr, strat := newHarness()

	reg := envelope.NewRegistry() // nothing registered

	dispatchReg := dispatch.NewRegistry()
	w := inbox.New(inbox.Deps{
		Strategy:     strat,
		Transport:    tr,
		Dedup:        store,
		Registry:     reg,
		Dispatcher:   dispatch.NewDispatcher(dispatchReg),
		Destinations: []string{"orders"},
	}, testConfig())

	cancel, done := runWorker(t, w)

	messageID := uuid.New()
	publishOrder(t, tr, messageID, "unknown.type", "whatever")

	require.Eventually(t, func() bool {
		dup, err := store.IsDuplicate(context.Background(), messageID)
		return err == nil && dup
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
