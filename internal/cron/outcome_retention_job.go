package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
)

const outcomeRetentionDays = 90

type OutcomeRetentionJobParams struct {
	Logger    *logger.Logger
	Purger    outcomePurger
	Retention time.Duration
}

type outcomePurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewOutcomeRetentionJob(params OutcomeRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("outcome purger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outcomeRetentionDays * 24 * time.Hour
	}
	return &outcomeRetentionJob{
		logg:      params.Logger,
		purger:    params.Purger,
		retention: retention,
		now:       time.Now,
	}, nil
}

type outcomeRetentionJob struct {
	logg      *logger.Logger
	purger    outcomePurger
	retention time.Duration
	now       func() time.Time
}

func (j *outcomeRetentionJob) Name() string { return "outcome-retention" }

func (j *outcomeRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("outcome retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outcome retention cleanup complete")
	return nil
}
