package envelope_test

import (
	"testing"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/stretchr/testify/require"
)

type orderCreated struct {
	OrderID string `json:"order_id"`
}

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	e := envelope.Envelope{
		MessageID: "m1",
		Payload:   []byte(`{"order_id":"o1"}`),
	}
	e = e.WithHop(envelope.Hop{Type: envelope.HopSent, Timestamp: time.Now(), ServiceInstance: "i1", CorrelationID: "c1"})

	data, err := e.Marshal()
	require.NoError(t, err)

	decoded, err := envelope.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, "m1", decoded.MessageID)
	require.Len(t, decoded.Hops, 1)
}

func TestWithHop_DoesNotMutateOriginal(t *testing.T) {
	e := envelope.Envelope{MessageID: "m1"}
	withHop := e.WithHop(envelope.Hop{Type: envelope.HopReceived})
	require.Empty(t, e.Hops)
	require.Len(t, withHop.Hops, 1)
}

func TestRegistry_DecodeRoundTrip(t *testing.T) {
	reg := envelope.NewRegistry()
	envelope.RegisterJSON[orderCreated](reg, "order.created")

	require.True(t, reg.Has("order.created"))

	decoded, err := reg.Decode("order.created", []byte(`{"order_id":"o1"}`))
	require.NoError(t, err)
	order, ok := decoded.(*orderCreated)
	require.True(t, ok)
	require.Equal(t, "o1", order.OrderID)
}

func TestRegistry_UnknownTag(t *testing.T) {
	reg := envelope.NewRegistry()
	_, err := reg.Decode("unknown", nil)
	require.Error(t, err)
}
