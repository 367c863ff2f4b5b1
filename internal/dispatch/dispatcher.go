// Package dispatch decides whether an order webhook fires, delivers it and
// records the outcome. Nothing inside Dispatch is returned as an error; every
// failure becomes dispatch record state plus a log line.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/sgtm-webhook/internal/delivery"
	"github.com/angelmondragon/sgtm-webhook/internal/orders"
	"github.com/angelmondragon/sgtm-webhook/internal/payload"
	"github.com/angelmondragon/sgtm-webhook/pkg/config"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
	"github.com/angelmondragon/sgtm-webhook/pkg/metrics"
)

// inFlightGrace covers payload building and recording around the HTTP call.
const inFlightGrace = 5 * time.Second

// Sender delivers requests and probes endpoints.
type Sender interface {
	Send(ctx context.Context, req delivery.Request) (*delivery.Response, error)
	Probe(ctx context.Context, url, authToken string) (*delivery.ProbeResult, error)
}

// Result is the value returned by one pass through the pipeline.
type Result struct {
	Decision   enums.DispatchDecision `json:"decision"`
	SkipReason enums.SkipReason       `json:"skip_reason,omitempty"`
	Outcome    *Outcome               `json:"outcome,omitempty"`
}

// Params wires the dispatcher's collaborators.
type Params struct {
	Config   config.WebhookConfig
	Orders   orders.Repository
	Records  Repository
	Outcomes OutcomeStore
	Builder  *payload.Builder
	Sender   Sender
	// Locker adds cross-process exclusion on top of the in-process mutex.
	Locker  Locker
	Metrics *metrics.DispatchMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

// Dispatcher runs the dispatch policy for single orders.
type Dispatcher struct {
	cfg      config.WebhookConfig
	orders   orders.Repository
	records  Repository
	builder  *payload.Builder
	sender   Sender
	locker   Locker
	recorder *Recorder
	metrics  *metrics.DispatchMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewDispatcher(p Params) (*Dispatcher, error) {
	if p.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if p.Records == nil {
		return nil, errors.New("dispatch repository required")
	}
	if p.Builder == nil {
		return nil, errors.New("payload builder required")
	}
	if p.Sender == nil {
		return nil, errors.New("sender required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	recorder, err := NewRecorder(p.Records, p.Outcomes, logg, now)
	if err != nil {
		return nil, err
	}

	var locker Locker = NewKeyedMutex()
	if p.Locker != nil {
		locker = chainLocker{locker, p.Locker}
	}

	return &Dispatcher{
		cfg:      p.Config,
		orders:   p.Orders,
		records:  p.Records,
		builder:  p.Builder,
		sender:   p.Sender,
		locker:   locker,
		recorder: recorder,
		metrics:  p.Metrics,
		logg:     logg,
		now:      now,
	}, nil
}

// Dispatch applies the ordered short-circuit rules for orderID and, when they
// all pass, builds, delivers and records one webhook.
func (d *Dispatcher) Dispatch(ctx context.Context, orderID int64, trigger enums.TriggerEvent) (res Result) {
	ctx = d.logg.WithOrderID(ctx, orderID)
	ctx = d.logg.WithField(ctx, "trigger", string(trigger))
	defer func() {
		d.metrics.IncDecision(string(res.Decision), string(res.SkipReason))
	}()

	if !d.cfg.Enabled {
		d.logg.Debug(ctx, "webhook disabled; skipping")
		return skipped(enums.SkipDisabled)
	}
	endpoint := d.cfg.BuildEndpoint()
	if endpoint == "" {
		d.logg.Error(ctx, "webhook endpoint not configured", errors.New("empty webhook url"))
		return skipped(enums.SkipNoEndpoint)
	}

	release, ok, err := d.locker.TryLock(ctx, orderID)
	if err != nil {
		d.logg.Error(ctx, "failed to acquire dispatch lock", err)
		return skipped(enums.SkipStoreError)
	}
	if !ok {
		d.logg.Debug(ctx, "dispatch already in flight; skipping")
		return skipped(enums.SkipInFlight)
	}
	defer release()

	return d.dispatchLocked(ctx, orderID, trigger, endpoint)
}

func (d *Dispatcher) dispatchLocked(ctx context.Context, orderID int64, trigger enums.TriggerEvent, endpoint string) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logg.Error(ctx, "dispatch panicked", fmt.Errorf("panic: %v", rec))
			outcome := d.recorder.Exception(ctx, orderID, trigger, fmt.Errorf("panic: %v", rec))
			res = Result{Decision: enums.DecisionFailed, Outcome: &outcome}
		}
	}()

	order, err := d.orders.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d.logg.Error(ctx, "order not found", err)
		return skipped(enums.SkipNotFound)
	}
	if err != nil {
		d.logg.Error(ctx, "failed to load order", err)
		return skipped(enums.SkipStoreError)
	}

	record, err := d.records.Get(ctx, orderID)
	if err != nil {
		d.logg.Error(ctx, "failed to load dispatch record", err)
		return skipped(enums.SkipStoreError)
	}
	if record.IsSent() {
		d.logg.Debug(ctx, "webhook already sent; skipping")
		return skipped(enums.SkipAlreadySent)
	}
	if !order.IsPaid() {
		d.logg.Debug(ctx, fmt.Sprintf("order status %s is not paid; skipping", order.Status))
		return skipped(enums.SkipNotPaid)
	}

	now := d.now().UTC()
	var previous *time.Time
	if record != nil {
		previous = record.LastAttemptAt
	}
	if previous != nil && now.Sub(*previous) < d.cfg.RateLimit() {
		d.logg.Debug(ctx, fmt.Sprintf("rate limited; last attempt %s ago", now.Sub(*previous).Truncate(time.Second)))
		return skipped(enums.SkipRateLimited)
	}

	claimed, err := d.records.Claim(ctx, orderID, previous, now, d.inFlightWindow())
	if err != nil {
		d.logg.Error(ctx, "failed to stamp dispatch attempt", err)
		return skipped(enums.SkipStoreError)
	}
	if !claimed {
		d.logg.Debug(ctx, "attempt claimed elsewhere or still in flight; skipping")
		return skipped(enums.SkipInFlight)
	}

	format := d.cfg.PayloadFormat()
	body, err := d.builder.Build(order, format)
	if err != nil {
		outcome := d.recorder.Exception(ctx, orderID, trigger, err)
		return Result{Decision: enums.DecisionFailed, Outcome: &outcome}
	}
	d.logg.Debug(d.logg.WithField(ctx, "event_id", body.EventID()), fmt.Sprintf("sending %s payload to %s", format, endpoint))

	resp, sendErr := d.sender.Send(ctx, delivery.Request{
		Endpoint:  endpoint,
		Payload:   body,
		AuthToken: d.cfg.AuthToken,
		AuthKey:   d.cfg.AuthKey,
	})
	d.observe(format, resp, sendErr)

	sent, outcome := d.recorder.Process(ctx, orderID, trigger, resp, sendErr)
	if sent {
		return Result{Decision: enums.DecisionSent, Outcome: &outcome}
	}
	return Result{Decision: enums.DecisionFailed, Outcome: &outcome}
}

// inFlightWindow bounds how long an unfinished attempt blocks new ones. It
// outlasts the delivery timeout so a slow request is never sent twice.
func (d *Dispatcher) inFlightWindow() time.Duration {
	return d.cfg.Timeout() + inFlightGrace
}

func (d *Dispatcher) observe(format enums.PayloadFormat, resp *delivery.Response, sendErr error) {
	if resp == nil {
		if sendErr != nil {
			d.metrics.ObserveDelivery(string(format), 0, 0)
		}
		return
	}
	d.metrics.ObserveDelivery(string(format), resp.StatusCode, resp.Duration)
}

func skipped(reason enums.SkipReason) Result {
	return Result{Decision: enums.DecisionSkipped, SkipReason: reason}
}
