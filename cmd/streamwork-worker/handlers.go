package main

import (
	"context"
	"encoding/json"

	"github.com/chris-alexander-pop/streamwork/pkg/dispatch"
	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/errors"
	"github.com/chris-alexander-pop/streamwork/pkg/validator"
)

// orderPlaced and orderConfirmed are the sample message types this binary
// ships wired end to end: a received order.placed envelope produces an
// order.confirmed cascade event on the "confirmations" destination.
type orderPlaced struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
	Amount  int64  `json:"amount" validate:"required,gt=0"`
}

type orderConfirmed struct {
	OrderID string `json:"order_id"`
}

// registerHandlers wires the sample order.placed -> order.confirmed flow
// into envelopes and handlers, validating the decoded payload with v before
// it ever reaches business logic.
func registerHandlers(envelopes *envelope.Registry, handlers *dispatch.Registry, v *validator.Validator) {
	envelope.RegisterJSON[orderPlaced](envelopes, "order.placed")

	handlers.Register("order.placed", func(ctx context.Context, payload interface{}) (dispatch.HandlerResult, error) {
		order, ok := payload.(*orderPlaced)
		if !ok {
			return dispatch.HandlerResult{}, errors.Internal("order.placed handler received the wrong payload type", nil)
		}
		if err := v.ValidateStruct(order); err != nil {
			return dispatch.HandlerResult{}, errors.InvalidArgument("invalid order.placed payload", err)
		}

		confirmation, err := json.Marshal(orderConfirmed{OrderID: order.OrderID})
		if err != nil {
			return dispatch.HandlerResult{}, errors.Wrap(err, "failed to marshal order.confirmed")
		}

		return dispatch.HandlerResult{
			Primary: order,
			Events: []dispatch.OutgoingEvent{
				{
					EnvelopeType: "order.confirmed",
					Payload:      confirmation,
					Destinations: []string{"confirmations"},
				},
			},
		}, nil
	})
}
