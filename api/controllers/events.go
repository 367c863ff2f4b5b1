package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/sgtm-webhook/api/responses"
	"github.com/angelmondragon/sgtm-webhook/api/validators"
	"github.com/angelmondragon/sgtm-webhook/internal/dispatch"
	"github.com/angelmondragon/sgtm-webhook/internal/events"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	pkgerrors "github.com/angelmondragon/sgtm-webhook/pkg/errors"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
)

type orderEventHandler interface {
	Handle(ctx context.Context, evt events.OrderEvent) (dispatch.Result, error)
}

type orderEventRequest struct {
	EventID   string `json:"event_id" validate:"omitempty,max=128"`
	EventType string `json:"event_type" validate:"required,oneof=order.paid order.status_changed order.payment_complete"`
	OrderID   int64  `json:"order_id" validate:"required,min=1"`
}

// OrderEvents accepts a trigger pushed by the order store and runs the
// dispatch policy synchronously. Skips and failed deliveries are reported in
// the body with a 200; only store outages surface as errors.
func OrderEvents(handler orderEventHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderEventRequest
		if err := validators.DecodeJSONBody(r, &req, false); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := handler.Handle(r.Context(), events.OrderEvent{
			EventID: req.EventID,
			Type:    enums.TriggerEvent(req.EventType),
			OrderID: req.OrderID,
		})
		if err != nil {
			if errors.Is(err, events.ErrRetry) {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order store unavailable")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
