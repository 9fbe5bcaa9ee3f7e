// Package tests provides a conformance suite shared by all messaging.Broker
// adapters, so each adapter's own test file only has to wire up a broker and
// call RunBrokerTests.
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/messaging"
	"github.com/stretchr/testify/require"
)

// RunBrokerTests exercises the basic publish/consume contract of a
// messaging.Broker implementation.
func RunBrokerTests(t *testing.T, broker messaging.Broker) {
	t.Helper()

	t.Run("PublishAndConsume", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		producer, err := broker.Producer("orders")
		require.NoError(t, err)
		defer producer.Close()

		consumer, err := broker.Consumer("orders", "workers")
		require.NoError(t, err)
		defer consumer.Close()

		received := make(chan *messaging.Message, 1)
		go func() {
			_ = consumer.Consume(ctx, func(ctx context.Context, msg *messaging.Message) error {
				received <- msg
				cancel()
				return nil
			})
		}()

		require.NoError(t, producer.Publish(ctx, &messaging.Message{
			Topic:   "orders",
			Payload: []byte(`{"order_id":"1"}`),
		}))

		select {
		case msg := <-received:
			require.Equal(t, `{"order_id":"1"}`, string(msg.Payload))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	})

	t.Run("Healthy", func(t *testing.T) {
		require.True(t, broker.Healthy(context.Background()))
	})
}
