package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/sgtm-webhook/internal/delivery"
	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
	"github.com/angelmondragon/sgtm-webhook/pkg/types"
)

const maxStoredBody = 500

// OutcomeStore accepts append-only outcome records.
type OutcomeStore interface {
	AppendOutcome(ctx context.Context, record *models.OutcomeRecord) error
}

// Outcome is the recorded result of one delivery attempt.
type Outcome struct {
	Success    bool                    `json:"success"`
	StatusCode int                     `json:"status_code"`
	ErrorKind  enums.DispatchErrorKind `json:"error_kind,omitempty"`
	Message    string                  `json:"message"`
}

// Recorder turns a delivery result into dispatch markers plus an outcome record.
type Recorder struct {
	records  Repository
	outcomes OutcomeStore
	logg     *logger.Logger
	now      func() time.Time
}

// NewRecorder wires the stores the recorder writes to.
func NewRecorder(records Repository, outcomes OutcomeStore, logg *logger.Logger, now func() time.Time) (*Recorder, error) {
	if records == nil {
		return nil, errors.New("dispatch repository required")
	}
	if outcomes == nil {
		return nil, errors.New("outcome store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{records: records, outcomes: outcomes, logg: logg, now: now}, nil
}

// Process classifies the result and persists it. It reports true only for a
// 2xx response. Store failures are logged and never returned.
func (r *Recorder) Process(ctx context.Context, orderID int64, trigger enums.TriggerEvent, resp *delivery.Response, sendErr error) (bool, Outcome) {
	now := r.now().UTC()
	if resp != nil && resp.BodyErr != nil {
		r.logg.Warn(r.logg.WithField(ctx, "status_code", resp.StatusCode), "webhook response body incomplete: "+resp.BodyErr.Error())
	}

	var connErr *delivery.ConnectionError
	switch {
	case errors.As(sendErr, &connErr):
		outcome := Outcome{ErrorKind: enums.ErrorKindConnection, Message: connErr.Error()}
		r.fail(ctx, orderID, trigger, now, outcome, "")
		return false, outcome
	case sendErr != nil:
		outcome := Outcome{ErrorKind: enums.ErrorKindException, Message: sendErr.Error()}
		r.fail(ctx, orderID, trigger, now, outcome, "")
		return false, outcome
	case resp == nil:
		outcome := Outcome{ErrorKind: enums.ErrorKindException, Message: "no response received"}
		r.fail(ctx, orderID, trigger, now, outcome, "")
		return false, outcome
	case resp.IsSuccess():
		return true, r.succeed(ctx, orderID, trigger, now, resp)
	default:
		body := truncateBody(resp.Body)
		outcome := Outcome{
			StatusCode: resp.StatusCode,
			ErrorKind:  enums.ErrorKindHTTP,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
		r.fail(ctx, orderID, trigger, now, outcome, body)
		return false, outcome
	}
}

// Exception records a failure that happened before any HTTP exchange.
func (r *Recorder) Exception(ctx context.Context, orderID int64, trigger enums.TriggerEvent, err error) Outcome {
	outcome := Outcome{ErrorKind: enums.ErrorKindException, Message: err.Error()}
	r.fail(ctx, orderID, trigger, r.now().UTC(), outcome, "")
	return outcome
}

func (r *Recorder) succeed(ctx context.Context, orderID int64, trigger enums.TriggerEvent, now time.Time, resp *delivery.Response) Outcome {
	outcome := Outcome{Success: true, StatusCode: resp.StatusCode, Message: "webhook delivered"}
	stored := &types.DispatchResponse{Code: resp.StatusCode, Timestamp: now}
	if resp.StatusCode == http.StatusNoContent {
		outcome.Message = "webhook accepted (no content)"
	} else {
		stored.Body = truncateBody(resp.Body)
	}

	marked, err := r.records.MarkSent(ctx, orderID, now, stored)
	switch {
	case err != nil:
		r.logg.Error(ctx, "failed to mark dispatch sent", err)
	case !marked:
		r.logg.Warn(ctx, "dispatch already marked sent; keeping first timestamp")
	}

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"status_code": resp.StatusCode,
		"duration_ms": resp.Duration.Milliseconds(),
	}), outcome.Message)
	if resp.StatusCode != http.StatusNoContent {
		r.logg.Debug(ctx, "webhook response body: "+stored.Body)
	}
	r.append(ctx, orderID, trigger, now, enums.OutcomeStatusSuccess, resp.StatusCode, outcome.Message)
	return outcome
}

func (r *Recorder) fail(ctx context.Context, orderID int64, trigger enums.TriggerEvent, now time.Time, outcome Outcome, body string) {
	failure := &types.DispatchError{
		Kind:      outcome.ErrorKind,
		Message:   outcome.Message,
		Code:      outcome.StatusCode,
		Body:      body,
		Timestamp: now,
	}
	if err := r.records.RecordError(ctx, orderID, failure); err != nil {
		r.logg.Error(ctx, "failed to record dispatch error", err)
	}

	fields := map[string]any{"error_kind": string(outcome.ErrorKind)}
	if outcome.StatusCode != 0 {
		fields["status_code"] = outcome.StatusCode
	}
	r.logg.Error(r.logg.WithFields(ctx, fields), "webhook delivery failed", errors.New(outcome.Message))
	if body != "" {
		r.logg.Debug(ctx, "webhook error body: "+body)
	}
	r.append(ctx, orderID, trigger, now, enums.OutcomeStatusError, outcome.StatusCode, outcome.Message)
}

func (r *Recorder) append(ctx context.Context, orderID int64, trigger enums.TriggerEvent, now time.Time, status enums.OutcomeStatus, code int, message string) {
	record := &models.OutcomeRecord{
		OrderID:      orderID,
		EventType:    string(trigger),
		Status:       status,
		ResponseCode: code,
		Message:      message,
		CreatedAt:    now,
	}
	if err := r.outcomes.AppendOutcome(ctx, record); err != nil {
		r.logg.Error(ctx, "failed to append outcome record", err)
	}
}

// truncateBody caps s at maxStoredBody bytes without splitting a rune.
func truncateBody(s string) string {
	if len(s) <= maxStoredBody {
		return s
	}
	cut := maxStoredBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
