package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/sgtm-webhook/api/responses"
	"github.com/angelmondragon/sgtm-webhook/api/validators"
	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sgtm-webhook/pkg/errors"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
	"github.com/angelmondragon/sgtm-webhook/pkg/pagination"
)

type outcomeHistory interface {
	ListByOrder(ctx context.Context, orderID int64, page pagination.Params) ([]models.OutcomeRecord, string, error)
}

type outcomeItem struct {
	ID           int64  `json:"id"`
	EventType    string `json:"event_type"`
	Status       string `json:"status"`
	ResponseCode int    `json:"response_code"`
	Message      string `json:"message"`
	CreatedAt    string `json:"created_at"`
}

type outcomePage struct {
	Items      []outcomeItem `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// AdminDispatchOutcomes lists the delivery audit trail for one order.
func AdminDispatchOutcomes(history outcomeHistory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseOrderIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
		if _, err := pagination.ParseCursor(cursor); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").WithDetails(map[string]any{"field": "cursor"}))
			return
		}

		records, next, err := history.ListByOrder(r.Context(), orderID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list outcomes"))
			return
		}

		page := outcomePage{Items: make([]outcomeItem, 0, len(records)), NextCursor: next}
		for _, rec := range records {
			page.Items = append(page.Items, outcomeItem{
				ID:           rec.ID,
				EventType:    rec.EventType,
				Status:       string(rec.Status),
				ResponseCode: rec.ResponseCode,
				Message:      rec.Message,
				CreatedAt:    rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		responses.WriteSuccess(w, page)
	}
}
