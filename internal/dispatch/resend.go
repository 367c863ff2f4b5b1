package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/sgtm-webhook/internal/delivery"
	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
)

const defaultReprocessLimit = 10

// ResendResult is the operator-facing answer to a manual resend.
type ResendResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  Result `json:"result"`
}

// ReprocessItem is the per-order line of a batch reprocess.
type ReprocessItem struct {
	OrderID int64        `json:"order_id"`
	Result  ResendResult `json:"result"`
}

// ReprocessSummary aggregates a batch reprocess.
type ReprocessSummary struct {
	Requested int             `json:"requested"`
	Sent      int             `json:"sent"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Items     []ReprocessItem `json:"items"`
}

// Resend clears the order's markers and re-runs the policy from the top.
// A resend inside the cooldown of a previous success is refused before
// anything is cleared.
func (d *Dispatcher) Resend(ctx context.Context, orderID int64) ResendResult {
	ctx = d.logg.WithOrderID(ctx, orderID)
	if orderID <= 0 {
		return ResendResult{Message: "invalid order id"}
	}
	// Markers are kept when nothing could be sent anyway.
	if !d.cfg.Enabled {
		return ResendResult{Message: describe(skipped(enums.SkipDisabled)), Result: skipped(enums.SkipDisabled)}
	}
	if d.cfg.BuildEndpoint() == "" {
		return ResendResult{Message: describe(skipped(enums.SkipNoEndpoint)), Result: skipped(enums.SkipNoEndpoint)}
	}
	if _, err := d.orders.FindByID(ctx, orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ResendResult{Message: "order not found", Result: skipped(enums.SkipNotFound)}
		}
		d.logg.Error(ctx, "resend: failed to load order", err)
		return ResendResult{Message: "failed to load order", Result: skipped(enums.SkipStoreError)}
	}

	record, err := d.records.Get(ctx, orderID)
	if err != nil {
		d.logg.Error(ctx, "resend: failed to load dispatch record", err)
		return ResendResult{Message: "failed to load dispatch record", Result: skipped(enums.SkipStoreError)}
	}
	if record.IsSent() && d.now().UTC().Sub(*record.SentAt) < d.cfg.RateLimit() {
		d.logg.Debug(ctx, "resend refused inside cooldown of previous success")
		result := skipped(enums.SkipRateLimited)
		d.metrics.IncDecision(string(result.Decision), string(result.SkipReason))
		return ResendResult{Message: describe(result), Result: result}
	}

	if record.InFlight(d.now().UTC(), d.inFlightWindow()) {
		d.logg.Debug(ctx, "resend refused while an attempt is in flight")
		result := skipped(enums.SkipInFlight)
		d.metrics.IncDecision(string(result.Decision), string(result.SkipReason))
		return ResendResult{Message: describe(result), Result: result}
	}

	if record != nil {
		if err := d.records.Clear(ctx, orderID); err != nil {
			d.logg.Error(ctx, "resend: failed to clear dispatch markers", err)
			return ResendResult{Message: "failed to clear dispatch markers", Result: skipped(enums.SkipStoreError)}
		}
	}
	d.logg.Info(ctx, "manual resend requested")

	result := d.Dispatch(ctx, orderID, enums.TriggerManualResend)
	return ResendResult{
		Success: result.Decision == enums.DecisionSent,
		Message: describe(result),
		Result:  result,
	}
}

// ReprocessRecent resends the limit most recent paid orders. Per-order
// failures are reported in the summary; only listing failures are returned.
func (d *Dispatcher) ReprocessRecent(ctx context.Context, limit int) (ReprocessSummary, error) {
	if limit <= 0 {
		limit = defaultReprocessLimit
	}
	ids, err := d.orders.ListRecentPaidIDs(ctx, limit)
	if err != nil {
		return ReprocessSummary{}, fmt.Errorf("list recent paid orders: %w", err)
	}

	summary := ReprocessSummary{Requested: len(ids), Items: make([]ReprocessItem, 0, len(ids))}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res := d.Resend(ctx, id)
		summary.Items = append(summary.Items, ReprocessItem{OrderID: id, Result: res})
		switch res.Result.Decision {
		case enums.DecisionSent:
			summary.Sent++
		case enums.DecisionFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"requested": summary.Requested,
		"sent":      summary.Sent,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}), "reprocess finished")
	return summary, nil
}

// RetryFailed re-runs the policy for unsent orders whose last attempt failed
// within maxAge. Cooldowns still apply. An order is retried at most
// RetryAttempts times after its first failure; a manual resend resets the count.
func (d *Dispatcher) RetryFailed(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	ids, err := d.records.ListRetryable(ctx, d.now().UTC().Add(-maxAge), d.cfg.RetryAttempts, limit)
	if err != nil {
		return 0, fmt.Errorf("list retryable dispatches: %w", err)
	}
	var errs error
	sent := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sent, multierr.Append(errs, err)
		}
		res := d.Dispatch(ctx, id, enums.TriggerRetrySweep)
		switch {
		case res.Decision == enums.DecisionSent:
			sent++
		case res.SkipReason == enums.SkipStoreError:
			errs = multierr.Append(errs, fmt.Errorf("order %d: store error", id))
		}
	}
	return sent, errs
}

// Record returns the dispatch markers for an order, or nil if none exist.
func (d *Dispatcher) Record(ctx context.Context, orderID int64) (*models.DispatchRecord, error) {
	return d.records.Get(ctx, orderID)
}

// TestResult reports a test event or connectivity check.
type TestResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

// SendTest posts a synthetic event to the configured endpoint. It touches no
// dispatch state.
func (d *Dispatcher) SendTest(ctx context.Context) TestResult {
	endpoint := d.cfg.BuildEndpoint()
	if endpoint == "" {
		return TestResult{Message: "webhook url not configured"}
	}
	resp, err := d.sender.Send(ctx, delivery.Request{
		Endpoint:  endpoint,
		Payload:   d.builder.BuildTest(),
		AuthToken: d.cfg.AuthToken,
		AuthKey:   d.cfg.AuthKey,
	})
	if err != nil {
		d.logg.Warn(ctx, "test event failed: "+err.Error())
		return TestResult{Message: err.Error()}
	}
	if resp.IsSuccess() {
		return TestResult{Success: true, StatusCode: resp.StatusCode, Message: fmt.Sprintf("connection ok (HTTP %d)", resp.StatusCode)}
	}
	return TestResult{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, firstBytes(resp.Body, 100)),
	}
}

// CheckConnectivity probes the configured base URL.
func (d *Dispatcher) CheckConnectivity(ctx context.Context) TestResult {
	url := d.cfg.ProbeURL()
	if url == "" {
		return TestResult{Message: "webhook url not configured"}
	}
	res, err := d.sender.Probe(ctx, url, d.cfg.AuthToken)
	if err != nil {
		return TestResult{Message: err.Error()}
	}
	return TestResult{Success: res.Reachable, StatusCode: res.StatusCode, Message: res.Message}
}

func describe(res Result) string {
	switch res.Decision {
	case enums.DecisionSent:
		return "webhook resent successfully"
	case enums.DecisionFailed:
		if res.Outcome != nil && res.Outcome.Message != "" {
			return "webhook failed: " + res.Outcome.Message
		}
		return "webhook failed"
	}
	switch res.SkipReason {
	case enums.SkipDisabled:
		return "webhook is disabled"
	case enums.SkipNoEndpoint:
		return "webhook url not configured"
	case enums.SkipNotFound:
		return "order not found"
	case enums.SkipAlreadySent:
		return "webhook already sent"
	case enums.SkipNotPaid:
		return "order is not paid"
	case enums.SkipRateLimited:
		return "rate limited; try again later"
	case enums.SkipInFlight:
		return "another dispatch for this order is in progress"
	case enums.SkipDuplicateEvent:
		return "event already processed"
	default:
		return "dispatch skipped: " + string(res.SkipReason)
	}
}

func firstBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
