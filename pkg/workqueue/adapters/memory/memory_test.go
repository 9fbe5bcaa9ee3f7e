package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue/adapters/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestProcessBatch_SingleInstanceHappyPath(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	stream := uuid.New()
	m1 := uuid.New()

	// The call that inserts m1 also claims it: step 5 runs before step 7.
	result, err := store.ProcessBatch(ctx, workqueue.BatchRequest{
		InstanceID:  "i1",
		ServiceName: "svc",
		NewOutboxMessages: []workqueue.NewMessage{
			{MessageID: m1, StreamID: stream, Destination: "orders", CreatedAt: time.Now()},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.OutboxWork, 1)
	require.Equal(t, m1, result.OutboxWork[0].MessageID)
	require.NotNil(t, result.OutboxWork[0].InstanceID)
	require.Equal(t, "i1", *result.OutboxWork[0].InstanceID)

	result, err = store.ProcessBatch(ctx, workqueue.BatchRequest{
		InstanceID:  "i1",
		ServiceName: "svc",
		OutboxCompletions: []workqueue.Completion{
			{MessageID: m1, Status: workqueue.Published},
		},
	})
	require.NoError(t, err)
	require.Empty(t, result.OutboxWork)
}

func TestProcessBatch_TwoInstanceModuloSplit(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.ProcessBatch(ctx, workqueue.BatchRequest{InstanceID: "i1", ServiceName: "svc"})
	require.NoError(t, err)
	_, err = store.ProcessBatch(ctx, workqueue.BatchRequest{InstanceID: "i2", ServiceName: "svc"})
	require.NoError(t, err)

	newMsgs := make([]workqueue.NewMessage, 0, 10)
	for i := 0; i < 10; i++ {
		newMsgs = append(newMsgs, workqueue.NewMessage{
			MessageID:   uuid.New(),
			StreamID:    uuid.New(),
			Destination: "orders",
			CreatedAt:   time.Now(),
		})
	}
	r1, err := store.ProcessBatch(ctx, workqueue.BatchRequest{
		InstanceID:        "i1",
		ServiceName:       "svc",
		NewOutboxMessages: newMsgs,
	})
	require.NoError(t, err)
	r2, err := store.ProcessBatch(ctx, workqueue.BatchRequest{InstanceID: "i2", ServiceName: "svc"})
	require.NoError(t, err)

	seen := make(map[uuid.UUID]bool)
	for _, m := range r1.OutboxWork {
		require.Equal(t, 0, m.Partition%2)
		seen[m.MessageID] = true
	}
	for _, m := range r2.OutboxWork {
		require.Equal(t, 1, m.Partition%2)
		require.False(t, seen[m.MessageID], "message claimed by both instances")
		seen[m.MessageID] = true
	}
	require.Len(t, seen, 10)
}

func TestProcessBatch_CascadeOnFailure(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	stream := uuid.New()

	t0 := time.Now()
	m1 := workqueue.NewMessage{MessageID: uuid.New(), StreamID: stream, Destination: "d", CreatedAt: t0}
	m2 := workqueue.NewMessage{MessageID: uuid.New(), StreamID: stream, Destination: "d", CreatedAt: t0.Add(time.Millisecond)}
	m3 := workqueue.NewMessage{MessageID: uuid.New(), StreamID: stream, Destination: "d", CreatedAt: t0.Add(2 * time.Millisecond)}

	claim, err := store.ProcessBatch(ctx, workqueue.BatchRequest{
		InstanceID:        "i1",
		ServiceName:       "svc",
		NewOutboxMessages: []workqueue.NewMessage{m1, m2, m3},
	})
	require.NoError(t, err)
	require.Len(t, claim.OutboxWork, 3)

	_, err = store.ProcessBatch(ctx, workqueue.BatchRequest{
		InstanceID:  "i1",
		ServiceName: "svc",
		OutboxFailures: []workqueue.Failure{
			{MessageID: m1.MessageID, CompletedStatus: workqueue.Stored, Error: "boom"},
		},
	})
	require.NoError(t, err)

	// The stream is paused, not reordered: m2/m3 stay released but
	// unclaimable while m1 is still Failed and unresolved (spec.md §8
	// scenario 4, §4.1 step 4's "pauses rather than reorders").
	reclaim, err := store.ProcessBatch(ctx, workqueue.BatchRequest{InstanceID: "i1", ServiceName: "svc"})
	require.NoError(t, err)
	require.Empty(t, reclaim.OutboxWork, "stream must stay paused while its earliest message is still Failed")

	// Resolving m1 (setting Published) unpauses the stream, and the same
	// call claims m2/m3 again.
	resumed, err := store.ProcessBatch(ctx, workqueue.BatchRequest{
		InstanceID:  "i1",
		ServiceName: "svc",
		OutboxCompletions: []workqueue.Completion{
			{MessageID: m1.MessageID, Status: workqueue.Published},
		},
	})
	require.NoError(t, err)

	resumedIDs := make(map[uuid.UUID]bool)
	for _, m := range resumed.OutboxWork {
		resumedIDs[m.MessageID] = true
	}
	require.True(t, resumedIDs[m2.MessageID])
	require.True(t, resumedIDs[m3.MessageID])
	require.False(t, resumedIDs[m1.MessageID], "already-resolved message must not be reclaimed")
}

func TestProcessBatch_OrphanRecovery(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	claim, err := store.ProcessBatch(ctx, workqueue.BatchRequest{
		InstanceID:            "dead",
		ServiceName:           "svc",
		LeaseSeconds:          1,
		StaleThresholdSeconds: 1,
		NewOutboxMessages: []workqueue.NewMessage{
			{MessageID: uuid.New(), StreamID: uuid.New(), Destination: "d", CreatedAt: time.Now()},
		},
	})
	require.NoError(t, err)
	require.Len(t, claim.OutboxWork, 1)

	time.Sleep(1100 * time.Millisecond)

	result, err := store.ProcessBatch(ctx, workqueue.BatchRequest{
		InstanceID:            "alive",
		ServiceName:           "svc",
		StaleThresholdSeconds: 1,
	})
	require.NoError(t, err)
	require.Len(t, result.OutboxWork, 1)
	require.Equal(t, "alive", *result.OutboxWork[0].InstanceID)
}

func TestIsDuplicate(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	id := uuid.New()

	dup, err := store.IsDuplicate(ctx, id)
	require.NoError(t, err)
	require.False(t, dup)

	dup, err = store.IsDuplicate(ctx, id)
	require.NoError(t, err)
	require.True(t, dup)
}

func TestProcessBatch_EmptyIsPureHeartbeat(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	result, err := store.ProcessBatch(ctx, workqueue.BatchRequest{InstanceID: "i1", ServiceName: "svc"})
	require.NoError(t, err)
	require.Empty(t, result.OutboxWork)
	require.Empty(t, result.InboxWork)
	require.True(t, store.Healthy(ctx))
}
