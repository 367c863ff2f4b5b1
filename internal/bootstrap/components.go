// Package bootstrap assembles the dispatch pipeline shared by every binary.
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/sgtm-webhook/internal/delivery"
	"github.com/angelmondragon/sgtm-webhook/internal/dispatch"
	"github.com/angelmondragon/sgtm-webhook/internal/events"
	"github.com/angelmondragon/sgtm-webhook/internal/orders"
	"github.com/angelmondragon/sgtm-webhook/internal/payload"
	"github.com/angelmondragon/sgtm-webhook/internal/statistics"
	"github.com/angelmondragon/sgtm-webhook/pkg/config"
	"github.com/angelmondragon/sgtm-webhook/pkg/db"
	"github.com/angelmondragon/sgtm-webhook/pkg/idempotency"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
	"github.com/angelmondragon/sgtm-webhook/pkg/metrics"
	"github.com/angelmondragon/sgtm-webhook/pkg/redis"
)

// Params carries the live clients. Redis is optional; without it locking is
// in-process only, statistics are not cached and event ids are not deduplicated.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
	// Sender overrides the HTTP delivery client.
	Sender dispatch.Sender
	Now    func() time.Time
}

type Components struct {
	Orders     orders.Repository
	Records    dispatch.Repository
	Outcomes   statistics.Repository
	Dispatcher *dispatch.Dispatcher
	Statistics *statistics.Service
	Events     *events.Handler
}

func Build(p Params) (*Components, error) {
	if p.Config == nil {
		return nil, errors.New("config is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if p.DB == nil {
		return nil, errors.New("database client is required")
	}
	cfg := p.Config
	now := p.Now
	if now == nil {
		now = time.Now
	}

	conn := p.DB.DB()
	orderRepo := orders.NewRepository(conn)
	recordRepo := dispatch.NewRepository(conn)
	outcomeRepo := statistics.NewRepository(conn)

	sender := p.Sender
	if sender == nil {
		sender = delivery.NewClient(delivery.Options{
			Timeout:     cfg.Webhook.Timeout(),
			ValidateSSL: cfg.Webhook.ValidateSSL,
			Version:     cfg.App.Version,
		})
	}

	var dispatchMetrics *metrics.DispatchMetrics
	if p.Registerer != nil {
		dispatchMetrics = metrics.NewDispatchMetrics(p.Registerer)
	}

	dispatchParams := dispatch.Params{
		Config:   cfg.Webhook,
		Orders:   orderRepo,
		Records:  recordRepo,
		Outcomes: outcomeRepo,
		Builder: payload.NewBuilder(payload.Params{
			Now:     now,
			Version: cfg.App.Version,
			SiteURL: cfg.App.SiteURL,
		}),
		Sender:  sender,
		Metrics: dispatchMetrics,
		Logger:  p.Logger,
		Now:     now,
	}
	statsParams := statistics.ServiceParams{
		Outcomes: outcomeRepo,
		Orders:   orderRepo,
		CacheTTL: cfg.Stats.CacheTTL,
		Logger:   p.Logger,
		Now:      now,
	}

	var seen *idempotency.Manager
	if p.Redis != nil {
		locker, err := dispatch.NewRedisLocker(p.Redis, cfg.Dispatch.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("dispatch locker: %w", err)
		}
		dispatchParams.Locker = locker
		statsParams.Cache = p.Redis

		seen, err = idempotency.NewManager(p.Redis, cfg.Eventing.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency manager: %w", err)
		}
	}

	dispatcher, err := dispatch.NewDispatcher(dispatchParams)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}
	stats, err := statistics.NewService(statsParams)
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}

	var handler *events.Handler
	if seen != nil {
		handler, err = events.NewHandler(dispatcher, seen, p.Logger)
	} else {
		handler, err = events.NewHandler(dispatcher, nil, p.Logger)
	}
	if err != nil {
		return nil, fmt.Errorf("event handler: %w", err)
	}

	return &Components{
		Orders:     orderRepo,
		Records:    recordRepo,
		Outcomes:   outcomeRepo,
		Dispatcher: dispatcher,
		Statistics: stats,
		Events:     handler,
	}, nil
}
