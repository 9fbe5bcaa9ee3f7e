package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/chris-alexander-pop/streamwork/pkg/dispatch"
	"github.com/stretchr/testify/require"
)

func TestDispatch_RoutesToRegisteredHandler(t *testing.T) {
	registry := dispatch.NewRegistry()
	registry.Register("order.created", func(ctx context.Context, payload interface{}) (dispatch.HandlerResult, error) {
		return dispatch.HandlerResult{
			Primary: "handled",
			Events:  []dispatch.OutgoingEvent{{EnvelopeType: "order.confirmed"}},
		}, nil
	})

	d := dispatch.NewDispatcher(registry)
	result, err := d.Dispatch(context.Background(), "order.created", nil)
	require.NoError(t, err)
	require.Equal(t, "handled", result.Primary)
	require.Len(t, result.Events, 1)
}

func TestDispatch_UnregisteredTypeErrors(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.NewRegistry())
	_, err := d.Dispatch(context.Background(), "unknown", nil)
	require.Error(t, err)
}

func TestDispatch_PropagatesHandlerError(t *testing.T) {
	registry := dispatch.NewRegistry()
	wantErr := errors.New("boom")
	registry.Register("t", func(ctx context.Context, payload interface{}) (dispatch.HandlerResult, error) {
		return dispatch.HandlerResult{}, wantErr
	})

	d := dispatch.NewDispatcher(registry)
	_, err := d.Dispatch(context.Background(), "t", nil)
	require.ErrorIs(t, err, wantErr)
}
