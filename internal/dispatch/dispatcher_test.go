package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/sgtm-webhook/internal/delivery"
	"github.com/angelmondragon/sgtm-webhook/internal/orders"
	"github.com/angelmondragon/sgtm-webhook/internal/payload"
	"github.com/angelmondragon/sgtm-webhook/internal/statistics"
	"github.com/angelmondragon/sgtm-webhook/pkg/config"
	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/angelmondragon/sgtm-webhook/pkg/types"
)

const widgetID int64 = 501

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// endpoint is a test webhook receiver.
type endpoint struct {
	srv    *httptest.Server
	hits   atomic.Int32
	mu     sync.Mutex
	bodies [][]byte
	status atomic.Int32
	reply  string
	delay  time.Duration
}

func newEndpoint(t *testing.T, status int) *endpoint {
	t.Helper()
	e := &endpoint{}
	e.status.Store(int32(status))
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.hits.Add(1)
		raw, _ := io.ReadAll(r.Body)
		e.mu.Lock()
		e.bodies = append(e.bodies, raw)
		delay, reply := e.delay, e.reply
		e.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		w.WriteHeader(int(e.status.Load()))
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *endpoint) setReply(body string) {
	e.mu.Lock()
	e.reply = body
	e.mu.Unlock()
}

func (e *endpoint) setDelay(d time.Duration) {
	e.mu.Lock()
	e.delay = d
	e.mu.Unlock()
}

func (e *endpoint) body(i int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bodies[i]
}

func (e *endpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.bodies)
}

type harness struct {
	db       *gorm.DB
	records  Repository
	outcomes statistics.Repository
	clock    *clock
}

func setupDispatchDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.DispatchRecord{},
		&models.OutcomeRecord{},
	))
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := setupDispatchDB(t)
	return &harness{
		db:       db,
		records:  NewRepository(db),
		outcomes: statistics.NewRepository(db),
		clock:    newClock(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)),
	}
}

func (h *harness) config(url string) config.WebhookConfig {
	return config.WebhookConfig{
		Enabled:          true,
		URL:              url,
		TimeoutSeconds:   2,
		ValidateSSL:      true,
		RateLimitSeconds: 60,
		RetryAttempts:    3,
		Format:           "generic",
	}
}

func (h *harness) dispatcher(t *testing.T, cfg config.WebhookConfig) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(Params{
		Config:   cfg,
		Orders:   orders.NewRepository(h.db),
		Records:  h.records,
		Outcomes: h.outcomes,
		Builder:  payload.NewBuilder(payload.Params{Now: h.clock.Now, Version: "test"}),
		Sender:   delivery.NewClient(delivery.Options{Timeout: cfg.Timeout(), ValidateSSL: cfg.ValidateSSL, Version: "test"}),
		Now:      h.clock.Now,
	})
	require.NoError(t, err)
	return d
}

// seedWidgetOrder stores order #1001: paid, 199.90 BRL, two Widgets at 50.00.
func (h *harness) seedWidgetOrder(t *testing.T, status enums.OrderStatus) {
	t.Helper()
	created := time.Date(2026, 3, 10, 14, 55, 0, 0, time.UTC)
	require.NoError(t, h.db.Create(&models.Product{
		ID:         widgetID,
		Name:       "Widget",
		Price:      decimal.RequireFromString("50.00"),
		Categories: types.StringList{"Gadgets"},
	}).Error)
	require.NoError(t, h.db.Create(&models.Order{
		ID:        1001,
		Status:    status,
		Currency:  "BRL",
		Subtotal:  decimal.RequireFromString("100.00"),
		Shipping:  decimal.RequireFromString("99.90"),
		Total:     decimal.RequireFromString("199.90"),
		Billing:   models.BillingIdentity{Email: "Test@Example.com"},
		CreatedAt: created,
	}).Error)
	id := widgetID
	require.NoError(t, h.db.Create(&models.OrderLineItem{
		OrderID:   1001,
		ProductID: &id,
		Name:      "Widget",
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("50.00"),
	}).Error)
}

func (h *harness) outcomeCount(t *testing.T, status enums.OutcomeStatus) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.OutcomeRecord{}).Where("status = ?", status).Count(&n).Error)
	return n
}

func (h *harness) record(t *testing.T) *models.DispatchRecord {
	t.Helper()
	rec, err := h.records.Get(context.Background(), 1001)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func TestDispatchWidgetOrderEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.seedWidgetOrder(t, enums.OrderStatusProcessing)
	ep := newEndpoint(t, http.StatusOK)
	ep.setReply(`{"ok":true}`)
	d := h.dispatcher(t, h.config(ep.srv.URL))

	res := d.Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	require.Equal(t, enums.DecisionSent, res.Decision)
	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.Success)

	rec := h.record(t)
	require.NotNil(t, rec.SentAt)
	assert.Nil(t, rec.LastError)
	require.NotNil(t, rec.LastResponse)
	assert.Equal(t, http.StatusOK, rec.LastResponse.Code)
	assert.Equal(t, `{"ok":true}`, rec.LastResponse.Body)
	assert.Equal(t, int64(1), h.outcomeCount(t, enums.OutcomeStatusSuccess))

	require.Equal(t, 1, ep.count())
	var body struct {
		UserData struct {
			Em           []string `json:"em"`
			EmailAddress string   `json:"email_address"`
		} `json:"user_data"`
		CustomData struct {
			Value      json.Number `json:"value"`
			ContentIDs []string    `json:"content_ids"`
		} `json:"custom_data"`
	}
	dec := json.NewDecoder(strings.NewReader(string(ep.body(0))))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&body))
	sum := sha256.Sum256([]byte("test@example.com"))
	assert.Equal(t, []string{hex.EncodeToString(sum[:])}, body.UserData.Em)
	assert.Equal(t, "test@example.com", body.UserData.EmailAddress)
	assert.Equal(t, "199.90", body.CustomData.Value.String())
	assert.Equal(t, []string{"501"}, body.CustomData.ContentIDs)

	again := d.Dispatch(context.Background(), 1001, enums.TriggerOrderStatusChanged)
	assert.Equal(t, enums.DecisionSkipped, again.Decision)
	assert.Equal(t, enums.SkipAlreadySent, again.SkipReason)
	assert.Equal(t, int32(1), ep.hits.Load())

	var total int64
	require.NoError(t, h.db.Model(&models.OutcomeRecord{}).Count(&total).Error)
	assert.Equal(t, int64(1), total)
}

func TestDispatchShortCircuitRules(t *testing.T) {
	h := newHarness(t)
	ep := newEndpoint(t, http.StatusOK)

	disabled := h.config(ep.srv.URL)
	disabled.Enabled = false
	res := h.dispatcher(t, disabled).Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	assert.Equal(t, enums.SkipDisabled, res.SkipReason)

	res = h.dispatcher(t, h.config("")).Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	assert.Equal(t, enums.SkipNoEndpoint, res.SkipReason)

	res = h.dispatcher(t, h.config(ep.srv.URL)).Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	assert.Equal(t, enums.SkipNotFound, res.SkipReason)

	h.seedWidgetOrder(t, enums.OrderStatusPending)
	res = h.dispatcher(t, h.config(ep.srv.URL)).Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	assert.Equal(t, enums.DecisionSkipped, res.Decision)
	assert.Equal(t, enums.SkipNotPaid, res.SkipReason)

	rec, err := h.records.Get(context.Background(), 1001)
	require.NoError(t, err)
	assert.Nil(t, rec, "skips never create a dispatch record")
	assert.Equal(t, int32(0), ep.hits.Load())
	assert.Equal(t, int64(0), h.outcomeCount(t, enums.OutcomeStatusError))
}

func TestDispatchRateLimitBoundary(t *testing.T) {
	h := newHarness(t)
	h.seedWidgetOrder(t, enums.OrderStatusCompleted)
	ep := newEndpoint(t, http.StatusInternalServerError)
	d := h.dispatcher(t, h.config(ep.srv.URL))
	start := h.clock.Now()

	res := d.Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	require.Equal(t, enums.DecisionFailed, res.Decision)

	h.clock.Set(start.Add(59 * time.Second))
	res = d.Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	assert.Equal(t, enums.SkipRateLimited, res.SkipReason)
	assert.True(t, res.SkipReason.Retryable())
	assert.Equal(t, int32(1), ep.hits.Load())

	h.clock.Set(start.Add(60 * time.Second))
	ep.status.Store(http.StatusOK)
	res = d.Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	assert.Equal(t, enums.DecisionSent, res.Decision)
	assert.Equal(t, int32(2), ep.hits.Load())

	rec := h.record(t)
	require.NotNil(t, rec.SentAt)
	assert.Nil(t, rec.LastError, "success clears the previous error")
	assert.Equal(t, int64(1), h.outcomeCount(t, enums.OutcomeStatusError))
	assert.Equal(t, int64(1), h.outcomeCount(t, enums.OutcomeStatusSuccess))
}

func TestDispatchRecordsHTTPErrorWithTruncatedBody(t *testing.T) {
	h := newHarness(t)
	h.seedWidgetOrder(t, enums.OrderStatusProcessing)
	ep := newEndpoint(t, http.StatusBadGateway)
	ep.setReply(strings.Repeat("x", 1200))
	d := h.dispatcher(t, h.config(ep.srv.URL))

	res := d.Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	require.Equal(t, enums.DecisionFailed, res.Decision)
	assert.Equal(t, enums.ErrorKindHTTP, res.Outcome.ErrorKind)

	rec := h.record(t)
	assert.Nil(t, rec.SentAt)
	require.NotNil(t, rec.LastError)
	assert.Equal(t, enums.ErrorKindHTTP, rec.LastError.Kind)
	assert.Equal(t, http.StatusBadGateway, rec.LastError.Code)
	assert.Len(t, rec.LastError.Body, 500)

	var outcome models.OutcomeRecord
	require.NoError(t, h.db.First(&outcome).Error)
	assert.Equal(t, enums.OutcomeStatusError, outcome.Status)
	assert.Equal(t, http.StatusBadGateway, outcome.ResponseCode)
	assert.Equal(t, string(enums.TriggerOrderPaid), outcome.EventType)
}

func TestDispatchRecordsConnectionError(t *testing.T) {
	h := newHarness(t)
	h.seedWidgetOrder(t, enums.OrderStatusProcessing)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := h.dispatcher(t, h.config(url)).Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	require.Equal(t, enums.DecisionFailed, res.Decision)

	rec := h.record(t)
	require.NotNil(t, rec.LastError)
	assert.Equal(t, enums.ErrorKindConnection, rec.LastError.Kind)
	assert.Zero(t, rec.LastError.Code)

	var outcome models.OutcomeRecord
	require.NoError(t, h.db.First(&outcome).Error)
	assert.Zero(t, outcome.ResponseCode)
}

func TestDispatchNoContentIsSuccessWithoutBody(t *testing.T) {
	h := newHarness(t)
	h.seedWidgetOrder(t, enums.OrderStatusProcessing)
	ep := newEndpoint(t, http.StatusNoContent)

	res := h.dispatcher(t, h.config(ep.srv.URL)).Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	require.Equal(t, enums.DecisionSent, res.Decision)
	rec := h.record(t)
	require.NotNil(t, rec.LastResponse)
	assert.Equal(t, http.StatusNoContent, rec.LastResponse.Code)
	assert.Empty(t, rec.LastResponse.Body)
}

type panickingSender struct{}

func (panickingSender) Send(context.Context, delivery.Request) (*delivery.Response, error) {
	panic("boom")
}

func (panickingSender) Probe(context.Context, string, string) (*delivery.ProbeResult, error) {
	return nil, nil
}

func TestDispatchRecoversPanicAsException(t *testing.T) {
	h := newHarness(t)
	h.seedWidgetOrder(t, enums.OrderStatusProcessing)
	d, err := NewDispatcher(Params{
		Config:   h.config("https://collect.example.com"),
		Orders:   orders.NewRepository(h.db),
		Records:  h.records,
		Outcomes: h.outcomes,
		Builder:  payload.NewBuilder(payload.Params{Now: h.clock.Now}),
		Sender:   panickingSender{},
		Now:      h.clock.Now,
	})
	require.NoError(t, err)

	res := d.Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	require.Equal(t, enums.DecisionFailed, res.Decision)
	assert.Equal(t, enums.ErrorKindException, res.Outcome.ErrorKind)

	rec := h.record(t)
	require.NotNil(t, rec.LastError)
	assert.Equal(t, enums.ErrorKindException, rec.LastError.Kind)
	assert.Contains(t, rec.LastError.Message, "boom")
}

func TestDispatchAtMostOnceUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	h.seedWidgetOrder(t, enums.OrderStatusProcessing)
	ep := newEndpoint(t, http.StatusOK)
	ep.setDelay(20 * time.Millisecond)
	cfg := h.config(ep.srv.URL)

	// Two dispatchers model two processes sharing the database.
	dispatchers := []*Dispatcher{h.dispatcher(t, cfg), h.dispatcher(t, cfg)}

	var wg sync.WaitGroup
	results := make(chan Result, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(d *Dispatcher) {
			defer wg.Done()
			results <- d.Dispatch(context.Background(), 1001, enums.TriggerOrderPaymentComplete)
		}(dispatchers[i%2])
	}
	wg.Wait()
	close(results)

	sent := 0
	for res := range results {
		if res.Decision == enums.DecisionSent {
			sent++
			continue
		}
		require.Equal(t, enums.DecisionSkipped, res.Decision)
	}
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), ep.hits.Load())
	assert.Equal(t, int64(1), h.outcomeCount(t, enums.OutcomeStatusSuccess))
}

func TestDispatchDifferentOrdersDoNotContend(t *testing.T) {
	locker := NewKeyedMutex()
	releaseA, ok, err := locker.TryLock(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	releaseB, ok, err := locker.TryLock(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, ok)

	releaseA()
	releaseA()
	releaseB()
	_, ok, err = locker.TryLock(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDispatchSlowDeliveryIsNotRepeatedAcrossProcesses(t *testing.T) {
	h := newHarness(t)
	h.seedWidgetOrder(t, enums.OrderStatusProcessing)

	var hits atomic.Int32
	arrived := make(chan struct{}, 4)
	unblock := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		arrived <- struct{}{}
		<-unblock
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	release := sync.OnceFunc(func() { close(unblock) })
	t.Cleanup(release)

	// A cooldown shorter than the timeout; the claim alone must hold.
	cfg := h.config(srv.URL)
	cfg.TimeoutSeconds = 30
	cfg.RateLimitSeconds = 10
	first, second := h.dispatcher(t, cfg), h.dispatcher(t, cfg)
	start := h.clock.Now()

	done := make(chan Result, 1)
	go func() {
		done <- first.Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	}()
	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("first delivery never reached the endpoint")
	}

	h.clock.Set(start.Add(11 * time.Second))
	res := second.Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	assert.Equal(t, enums.DecisionSkipped, res.Decision)
	assert.Equal(t, enums.SkipInFlight, res.SkipReason)

	resend := second.Resend(context.Background(), 1001)
	assert.Equal(t, enums.SkipInFlight, resend.Result.SkipReason)
	require.NotNil(t, h.record(t).LastAttemptAt, "refused resend keeps the attempt marker")

	release()
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("first dispatch never finished")
	}
	assert.Equal(t, enums.DecisionSent, res.Decision)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int64(1), h.outcomeCount(t, enums.OutcomeStatusSuccess))
}

func TestDispatchRecordInFlight(t *testing.T) {
	attempt := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	window := 35 * time.Second

	running := &models.DispatchRecord{LastAttemptAt: &attempt}
	assert.True(t, running.InFlight(attempt.Add(34*time.Second), window))
	assert.False(t, running.InFlight(attempt.Add(35*time.Second), window), "abandoned attempts expire")

	failed := &models.DispatchRecord{LastAttemptAt: &attempt, LastError: &types.DispatchError{Timestamp: attempt}}
	assert.False(t, failed.InFlight(attempt.Add(time.Second), window))

	staleError := &models.DispatchRecord{LastAttemptAt: &attempt, LastError: &types.DispatchError{Timestamp: attempt.Add(-time.Minute)}}
	assert.True(t, staleError.InFlight(attempt.Add(time.Second), window), "an older error does not finish a newer attempt")

	sentAt := attempt.Add(time.Second)
	sent := &models.DispatchRecord{LastAttemptAt: &attempt, SentAt: &sentAt}
	assert.False(t, sent.InFlight(attempt.Add(2*time.Second), window))

	var missing *models.DispatchRecord
	assert.False(t, missing.InFlight(attempt, window))
}

func TestClaimRefusesAttemptStillInFlight(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := h.clock.Now()
	window := 35 * time.Second

	ok, err := h.records.Claim(ctx, 1001, nil, start, window)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.records.Claim(ctx, 1001, &start, start.Add(11*time.Second), window)
	require.NoError(t, err)
	assert.False(t, ok, "unfinished attempt inside the window")

	require.NoError(t, h.records.RecordError(ctx, 1001, &types.DispatchError{Kind: enums.ErrorKindHTTP, Timestamp: start.Add(time.Second)}))
	ok, err = h.records.Claim(ctx, 1001, &start, start.Add(12*time.Second), window)
	require.NoError(t, err)
	assert.True(t, ok, "a recorded failure finishes the attempt")
}

func TestDispatchTruncatedSuccessBodyStillMarksSent(t *testing.T) {
	h := newHarness(t)
	h.seedWidgetOrder(t, enums.OrderStatusProcessing)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok"`))
		w.(http.Flusher).Flush()
		if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
			_ = conn.Close()
		}
	}))
	t.Cleanup(srv.Close)

	res := h.dispatcher(t, h.config(srv.URL)).Dispatch(context.Background(), 1001, enums.TriggerOrderPaid)
	require.Equal(t, enums.DecisionSent, res.Decision)
	assert.Equal(t, http.StatusOK, res.Outcome.StatusCode)

	rec := h.record(t)
	require.NotNil(t, rec.SentAt)
	assert.Nil(t, rec.LastError)
	assert.Equal(t, int64(1), h.outcomeCount(t, enums.OutcomeStatusSuccess))
	assert.Equal(t, int64(0), h.outcomeCount(t, enums.OutcomeStatusError))
}
