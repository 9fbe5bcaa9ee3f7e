package memory_test

import (
	"context"
	"testing"

	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/transport"
	"github.com/chris-alexander-pop/streamwork/pkg/transport/adapters/memory"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	tr := memory.New()
	received := make(chan envelope.Envelope, 1)
	var gotType string

	sub, err := tr.Subscribe(context.Background(), "orders", func(ctx context.Context, env envelope.Envelope, envelopeType string) error {
		gotType = envelopeType
		received <- env
		return nil
	})
	require.NoError(t, err)
	defer sub.Dispose()

	err = tr.Publish(context.Background(), envelope.Envelope{MessageID: "m1"}, "orders", "order.created")
	require.NoError(t, err)

	select {
	case env := <-received:
		require.Equal(t, "m1", env.MessageID)
		require.Equal(t, "order.created", gotType)
	default:
		t.Fatal("expected synchronous delivery")
	}
}

func TestPause_StopsDelivery(t *testing.T) {
	tr := memory.New()
	calls := 0

	sub, err := tr.Subscribe(context.Background(), "orders", func(ctx context.Context, env envelope.Envelope, envelopeType string) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, sub.Pause())
	require.NoError(t, tr.Publish(context.Background(), envelope.Envelope{}, "orders", "t"))
	require.Equal(t, 0, calls)

	require.NoError(t, sub.Resume())
	require.NoError(t, tr.Publish(context.Background(), envelope.Envelope{}, "orders", "t"))
	require.Equal(t, 1, calls)
}

func TestDispose_RemovesSubscription(t *testing.T) {
	tr := memory.New()
	calls := 0

	sub, err := tr.Subscribe(context.Background(), "orders", func(ctx context.Context, env envelope.Envelope, envelopeType string) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, sub.Dispose())

	require.NoError(t, tr.Publish(context.Background(), envelope.Envelope{}, "orders", "t"))
	require.Equal(t, 0, calls)
}

func TestCapabilitiesAndReady(t *testing.T) {
	tr := memory.New()
	require.True(t, tr.Capabilities().Has(transport.PublishSubscribe))
	require.True(t, tr.Ready(context.Background()))
}
