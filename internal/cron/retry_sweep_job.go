package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
)

const (
	retrySweepLimit  = 50
	retrySweepMaxAge = 72 * time.Hour
)

type RetrySweepJobParams struct {
	Logger  *logger.Logger
	Retrier failedRetrier
	Limit   int
	MaxAge  time.Duration
}

type failedRetrier interface {
	RetryFailed(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

// NewRetrySweepJob re-runs recently failed dispatches through the normal
// policy, so cooldowns and paid checks still apply.
func NewRetrySweepJob(params RetrySweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Retrier == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = retrySweepLimit
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = retrySweepMaxAge
	}
	return &retrySweepJob{logg: params.Logger, retrier: params.Retrier, limit: limit, maxAge: maxAge}, nil
}

type retrySweepJob struct {
	logg    *logger.Logger
	retrier failedRetrier
	limit   int
	maxAge  time.Duration
}

func (j *retrySweepJob) Name() string { return "retry-sweep" }

func (j *retrySweepJob) Run(ctx context.Context) error {
	sent, err := j.retrier.RetryFailed(ctx, j.maxAge, j.limit)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"sent":    sent,
		"limit":   j.limit,
		"max_age": j.maxAge.String(),
	})
	if err != nil {
		return fmt.Errorf("retry sweep: %w", err)
	}
	j.logg.Info(logCtx, "retry sweep complete")
	return nil
}
