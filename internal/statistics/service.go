// Package statistics reports delivery health from the outcome log.
package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sgtm-webhook/internal/orders"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
)

const (
	summaryWindow   = 30 * 24 * time.Hour
	defaultCacheTTL = time.Hour
	cacheScope      = "stats"
	// cacheBucketLayout keys the cache per hour so a new hour always recomputes.
	cacheBucketLayout = "2006010215"
)

// Summary is the dashboard view of webhook delivery.
type Summary struct {
	TotalSent        int             `json:"total_sent"`
	ErrorsToday      int             `json:"errors_today"`
	SentToday        int             `json:"sent_today"`
	SuccessRateToday float64         `json:"success_rate_today"`
	LastSentOrderID  *int64          `json:"last_sent_order_id,omitempty"`
	LastSentAt       *time.Time      `json:"last_sent_at,omitempty"`
	Revenue          decimal.Decimal `json:"revenue"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

// ServiceParams wires the statistics service.
type ServiceParams struct {
	Outcomes Repository
	Orders   orders.Repository
	// Cache is optional.
	Cache    cacheStore
	CacheTTL time.Duration
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service computes and caches Summary.
type Service struct {
	outcomes Repository
	orders   orders.Repository
	cache    cacheStore
	ttl      time.Duration
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Outcomes == nil {
		return nil, errors.New("outcome repository required")
	}
	if p.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	ttl := p.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		outcomes: p.Outcomes,
		orders:   p.Orders,
		cache:    p.Cache,
		ttl:      ttl,
		logg:     logg,
		now:      now,
	}, nil
}

// Summary returns the cached summary for the current hour, computing it on a miss.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	now := s.now().UTC()
	key := s.cacheKey(now)
	if cached, ok := s.readCache(ctx, key); ok {
		return cached, nil
	}

	summary, err := s.compute(ctx, now)
	if err != nil {
		return Summary{}, err
	}
	s.writeCache(ctx, key, summary)
	return summary, nil
}

// Invalidate drops the current hour's cached summary.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(s.now().UTC())); err != nil {
		s.logg.Warn(ctx, "failed to drop statistics cache: "+err.Error())
	}
}

// PurgeBefore deletes outcome rows older than cutoff.
func (s *Service) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.outcomes.DeleteBefore(ctx, cutoff)
}

func (s *Service) compute(ctx context.Context, now time.Time) (Summary, error) {
	windowStart := now.Add(-summaryWindow)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	sentIDs, err := s.outcomes.DistinctOrderIDs(ctx, enums.OutcomeStatusSuccess, windowStart, now.Add(time.Second))
	if err != nil {
		return Summary{}, fmt.Errorf("count sent orders: %w", err)
	}
	sentToday, err := s.outcomes.DistinctOrderIDs(ctx, enums.OutcomeStatusSuccess, dayStart, dayEnd)
	if err != nil {
		return Summary{}, fmt.Errorf("count sent today: %w", err)
	}
	errorsToday, err := s.outcomes.DistinctOrderIDs(ctx, enums.OutcomeStatusError, dayStart, dayEnd)
	if err != nil {
		return Summary{}, fmt.Errorf("count errors today: %w", err)
	}
	revenue, err := s.orders.SumTotals(ctx, sentIDs)
	if err != nil {
		return Summary{}, fmt.Errorf("sum revenue: %w", err)
	}
	last, err := s.outcomes.LastSuccess(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load last success: %w", err)
	}

	summary := Summary{
		TotalSent:        len(sentIDs),
		SentToday:        len(sentToday),
		ErrorsToday:      len(errorsToday),
		SuccessRateToday: successRate(len(sentToday), len(errorsToday)),
		Revenue:          revenue,
		GeneratedAt:      now,
	}
	if last != nil {
		id, at := last.OrderID, last.CreatedAt.UTC()
		summary.LastSentOrderID = &id
		summary.LastSentAt = &at
	}
	return summary, nil
}

// successRate is 100 when there was no traffic.
func successRate(sent, failed int) float64 {
	total := sent + failed
	if total == 0 {
		return 100
	}
	rate := float64(sent) / float64(total) * 100
	return float64(int(rate*10+0.5)) / 10
}

func (s *Service) cacheKey(now time.Time) string {
	if s.cache == nil {
		return ""
	}
	return s.cache.CacheKey(cacheScope, now.Format(cacheBucketLayout))
}

func (s *Service) readCache(ctx context.Context, key string) (Summary, bool) {
	if s.cache == nil {
		return Summary{}, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logg.Warn(ctx, "statistics cache read failed: "+err.Error())
		}
		return Summary{}, false
	}
	var summary Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		s.logg.Warn(ctx, "statistics cache entry unreadable: "+err.Error())
		return Summary{}, false
	}
	return summary, true
}

func (s *Service) writeCache(ctx context.Context, key string, summary Summary) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
		s.logg.Warn(ctx, "statistics cache write failed: "+err.Error())
	}
}
