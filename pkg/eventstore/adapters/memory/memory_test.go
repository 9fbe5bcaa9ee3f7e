package memory_test

import (
	"context"
	"testing"

	"github.com/chris-alexander-pop/streamwork/pkg/eventstore/adapters/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRead_RoundTrip(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	stream := uuid.New()
	eventID := uuid.New()

	seq, err := store.Append(ctx, stream, eventID, "order.created", []byte(`{"id":1}`))
	require.NoError(t, err)
	require.Equal(t, int64(0), seq)

	records, err := store.Read(ctx, stream, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, []byte(`{"id":1}`), records[0].Payload)
}

func TestGetLastSequence_EmptyStreamIsNegativeOne(t *testing.T) {
	store := memory.New()
	seq, err := store.GetLastSequence(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, int64(-1), seq)
}

func TestGetLastSequence_TracksAppends(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	stream := uuid.New()

	_, err := store.Append(ctx, stream, uuid.New(), "t", nil)
	require.NoError(t, err)
	seq, err := store.Append(ctx, stream, uuid.New(), "t", nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)

	last, err := store.GetLastSequence(ctx, stream)
	require.NoError(t, err)
	require.Equal(t, seq, last)
}

func TestGetEventsBetween_RangeIsExclusiveStartInclusiveEnd(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	stream := uuid.New()

	e1, e2, e3 := uuid.New(), uuid.New(), uuid.New()
	_, err := store.Append(ctx, stream, e1, "t", nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, stream, e2, "t", nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, stream, e3, "t", nil)
	require.NoError(t, err)

	records, err := store.GetEventsBetween(ctx, stream, &e1, e3)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, e2, records[0].EventID)
	require.Equal(t, e3, records[1].EventID)
}
