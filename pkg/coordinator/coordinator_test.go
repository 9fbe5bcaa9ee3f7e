package coordinator_test

import (
	"context"
	"testing"

	"github.com/chris-alexander-pop/streamwork/pkg/coordinator"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue/adapters/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestClient_FlushCarriesIdentityAndTunablesIntoBatchRequest(t *testing.T) {
	store := memory.New()
	identity := coordinator.Identity{InstanceID: "i1", ServiceName: "svc", HostName: "h1", ProcessID: 42}
	cfg := workqueue.Config{LeaseSeconds: 60, PartitionCount: 16, BatchSize: 5}
	c := coordinator.New(store, identity, cfg)

	streamID := uuid.New()
	msgID := uuid.New()
	result, err := c.Flush(context.Background(), coordinator.Request{
		NewOutboxMessages: []workqueue.NewMessage{
			{MessageID: msgID, StreamID: streamID, Destination: "orders"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.OutboxWork, 1)
	require.Equal(t, msgID, result.OutboxWork[0].MessageID)
	require.Equal(t, "orders", result.OutboxWork[0].Destination)
}

func TestClient_FlushIsAPureHeartbeatWithEmptyInputs(t *testing.T) {
	store := memory.New()
	identity := coordinator.Identity{InstanceID: "i1", ServiceName: "svc"}
	c := coordinator.New(store, identity, workqueue.Config{})

	result, err := c.Flush(context.Background(), coordinator.Request{})
	require.NoError(t, err)
	require.Empty(t, result.OutboxWork)
	require.Empty(t, result.InboxWork)
}
