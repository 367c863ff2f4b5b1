// Package events turns inbound order events into dispatch attempts.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/sgtm-webhook/internal/dispatch"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	pkgerrors "github.com/angelmondragon/sgtm-webhook/pkg/errors"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
)

const consumerName = "orders"

// OrderEvent is one inbound trigger.
type OrderEvent struct {
	// EventID is optional; when set, redeliveries are dropped.
	EventID string
	Type    enums.TriggerEvent
	OrderID int64
}

type dispatcher interface {
	Dispatch(ctx context.Context, orderID int64, trigger enums.TriggerEvent) dispatch.Result
}

type idempotencyChecker interface {
	CheckAndMark(ctx context.Context, consumer, eventID string) (bool, error)
	Forget(ctx context.Context, consumer, eventID string) error
}

// Handler validates an event, drops duplicates and runs the dispatch policy.
type Handler struct {
	dispatcher dispatcher
	seen       idempotencyChecker
	logg       *logger.Logger
}

// NewHandler builds a handler. seen may be nil when Redis is not configured.
func NewHandler(d dispatcher, seen idempotencyChecker, logg *logger.Logger) (*Handler, error) {
	if d == nil {
		return nil, errors.New("dispatcher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Handler{dispatcher: d, seen: seen, logg: logg}, nil
}

// ErrRetry marks a failure the transport should redeliver.
var ErrRetry = errors.New("event should be retried")

// Handle returns a validation error for malformed events, ErrRetry (wrapped)
// when a store was unavailable, and nil otherwise, whatever the dispatch decision.
func (h *Handler) Handle(ctx context.Context, evt OrderEvent) (dispatch.Result, error) {
	if !evt.Type.IsInbound() {
		return dispatch.Result{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported event type %q", evt.Type)
	}
	if evt.OrderID <= 0 {
		return dispatch.Result{}, pkgerrors.New(pkgerrors.CodeValidation, "order_id must be positive")
	}

	eventID := strings.TrimSpace(evt.EventID)
	ctx = h.logg.WithFields(ctx, map[string]any{
		"event_id":   eventID,
		"event_type": string(evt.Type),
	})

	if eventID != "" && h.seen != nil {
		already, err := h.seen.CheckAndMark(ctx, consumerName, eventID)
		if err != nil {
			h.logg.Error(ctx, "idempotency check failed", err)
			return dispatch.Result{}, fmt.Errorf("idempotency check: %w", ErrRetry)
		}
		if already {
			h.logg.Info(ctx, "event already processed")
			return dispatch.Result{Decision: enums.DecisionSkipped, SkipReason: enums.SkipDuplicateEvent}, nil
		}
	}

	res := h.dispatcher.Dispatch(ctx, evt.OrderID, evt.Type)
	if res.SkipReason == enums.SkipStoreError {
		if eventID != "" && h.seen != nil {
			if err := h.seen.Forget(ctx, consumerName, eventID); err != nil {
				h.logg.Warn(ctx, "failed to release idempotency key: "+err.Error())
			}
		}
		return res, fmt.Errorf("order %d: %w", evt.OrderID, ErrRetry)
	}
	return res, nil
}
