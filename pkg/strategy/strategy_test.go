package strategy_test

import (
	"context"
	"testing"

	"github.com/chris-alexander-pop/streamwork/pkg/coordinator"
	"github.com/chris-alexander-pop/streamwork/pkg/strategy"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeCoordinator struct {
	requests []coordinator.Request
}

func (f *fakeCoordinator) Flush(ctx context.Context, req coordinator.Request) (*workqueue.BatchResult, error) {
	f.requests = append(f.requests, req)
	return &workqueue.BatchResult{}, nil
}

func TestFlush_SendsAccumulatedQueuesInOneCall(t *testing.T) {
	coord := &fakeCoordinator{}
	s := strategy.New(coord)

	msg := workqueue.NewMessage{MessageID: uuid.New(), StreamID: uuid.New(), Destination: "d"}
	s.QueueOutboxMessage(msg)
	s.QueueOutboxCompletion(workqueue.Completion{MessageID: uuid.New(), Status: workqueue.Published})
	s.QueueInboxFailure(workqueue.Failure{MessageID: uuid.New(), Error: "boom"})

	_, err := s.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, coord.requests, 1)

	req := coord.requests[0]
	require.Len(t, req.NewOutboxMessages, 1)
	require.Len(t, req.OutboxCompletions, 1)
	require.Len(t, req.InboxFailures, 1)
}

func TestFlush_ClearsQueueAfterFlush(t *testing.T) {
	coord := &fakeCoordinator{}
	s := strategy.New(coord)

	s.QueueOutboxMessage(workqueue.NewMessage{MessageID: uuid.New(), StreamID: uuid.New()})
	_, err := s.Flush(context.Background())
	require.NoError(t, err)

	_, err = s.Flush(context.Background())
	require.NoError(t, err)

	require.Len(t, coord.requests, 2)
	require.Len(t, coord.requests[0].NewOutboxMessages, 1)
	require.Empty(t, coord.requests[1].NewOutboxMessages)
}
