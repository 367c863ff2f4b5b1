package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/sgtm-webhook/api/responses"
	"github.com/angelmondragon/sgtm-webhook/api/validators"
	"github.com/angelmondragon/sgtm-webhook/internal/dispatch"
	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sgtm-webhook/pkg/errors"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
	"github.com/angelmondragon/sgtm-webhook/pkg/types"
)

type dispatchService interface {
	Resend(ctx context.Context, orderID int64) dispatch.ResendResult
	ReprocessRecent(ctx context.Context, limit int) (dispatch.ReprocessSummary, error)
	Record(ctx context.Context, orderID int64) (*models.DispatchRecord, error)
}

type reprocessRequest struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=100"`
}

type dispatchRecordResponse struct {
	OrderID       int64                   `json:"order_id"`
	State         string                  `json:"state"`
	SentAt        *time.Time              `json:"sent_at"`
	LastAttemptAt *time.Time              `json:"last_attempt_at"`
	LastError     *types.DispatchError    `json:"last_error"`
	LastResponse  *types.DispatchResponse `json:"last_response"`
	FailedCount   int                     `json:"failed_attempts"`
}

func AdminDispatchResend(svc dispatchService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseOrderIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrderID(r.Context(), orderID)
		result := svc.Resend(ctx, orderID)
		logg.Info(logg.WithField(ctx, "success", result.Success), "manual resend requested")
		responses.WriteSuccess(w, result)
	}
}

func AdminDispatchReprocess(svc dispatchService, defaultLimit int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reprocessRequest
		if err := validators.DecodeJSONBody(r, &req, true); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit := req.Limit
		if limit == 0 {
			limit = defaultLimit
		}

		summary, err := svc.ReprocessRecent(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recent orders"))
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func AdminDispatchRecord(svc dispatchService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseOrderIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Record(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatch record"))
			return
		}
		if record == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeNotFound, "no dispatch record for order %d", orderID))
			return
		}
		responses.WriteSuccess(w, toDispatchRecordResponse(record))
	}
}

func toDispatchRecordResponse(rec *models.DispatchRecord) dispatchRecordResponse {
	out := dispatchRecordResponse{
		OrderID:       rec.OrderID,
		SentAt:        rec.SentAt,
		LastAttemptAt: rec.LastAttemptAt,
		LastError:     rec.LastError,
		LastResponse:  rec.LastResponse,
		FailedCount:   rec.FailedAttempts,
	}
	switch {
	case rec.SentAt != nil:
		out.State = "sent"
	case rec.LastAttemptAt != nil && (rec.LastError == nil || rec.LastError.Timestamp.Before(*rec.LastAttemptAt)):
		out.State = "in_flight"
	case rec.LastError != nil:
		out.State = "failed"
	default:
		out.State = "pending"
	}
	return out
}
