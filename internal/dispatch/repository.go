package dispatch

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
	"github.com/angelmondragon/sgtm-webhook/pkg/types"
)

// Repository persists per-order dispatch markers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Get returns the record for orderID, or nil when no attempt was ever made.
	Get(ctx context.Context, orderID int64) (*models.DispatchRecord, error)
	// Claim stamps last_attempt_at when the record is unsent, its attempt
	// marker still equals previous and that attempt is not in flight within
	// window. It reports false when another attempt won or is still running.
	Claim(ctx context.Context, orderID int64, previous *time.Time, at time.Time, window time.Duration) (bool, error)
	// MarkSent sets sent_at once and clears last_error and the failure count.
	MarkSent(ctx context.Context, orderID int64, at time.Time, resp *types.DispatchResponse) (bool, error)
	RecordError(ctx context.Context, orderID int64, failure *types.DispatchError) error
	// Clear resets all four markers and the failure count.
	Clear(ctx context.Context, orderID int64) error
	// ListRetryable returns unsent orders whose last attempt failed at or after
	// since and that have failed at most maxFailures times.
	ListRetryable(ctx context.Context, since time.Time, maxFailures, limit int) ([]int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a dispatch record repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, orderID int64) (*models.DispatchRecord, error) {
	var record models.DispatchRecord
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) Claim(ctx context.Context, orderID int64, previous *time.Time, at time.Time, window time.Duration) (bool, error) {
	db := r.db.WithContext(ctx)
	seed := models.DispatchRecord{OrderID: orderID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return false, err
	}

	if previous != nil {
		current, err := r.Get(ctx, orderID)
		if err != nil {
			return false, err
		}
		// The conditional update below pins last_attempt_at, so a record seen
		// as finished here cannot turn back into a running attempt.
		if current == nil || current.InFlight(at, window) {
			return false, nil
		}
	}

	query := db.Model(&models.DispatchRecord{}).
		Where("order_id = ?", orderID).
		Where("sent_at IS NULL")
	if previous == nil {
		query = query.Where("last_attempt_at IS NULL")
	} else {
		query = query.Where("last_attempt_at = ?", *previous)
	}
	res := query.Update("last_attempt_at", at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkSent(ctx context.Context, orderID int64, at time.Time, resp *types.DispatchResponse) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DispatchRecord{}).
		Where("order_id = ? AND sent_at IS NULL", orderID).
		Updates(map[string]any{
			"sent_at":         at.UTC(),
			"last_error":      nil,
			"last_response":   resp,
			"failed_attempts": 0,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RecordError(ctx context.Context, orderID int64, failure *types.DispatchError) error {
	return r.db.WithContext(ctx).
		Model(&models.DispatchRecord{}).
		Where("order_id = ? AND sent_at IS NULL", orderID).
		Updates(map[string]any{
			"last_error":      failure,
			"failed_attempts": gorm.Expr("failed_attempts + 1"),
		}).Error
}

func (r *repository) Clear(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).
		Model(&models.DispatchRecord{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"sent_at":         nil,
			"last_attempt_at": nil,
			"last_error":      nil,
			"last_response":   nil,
			"failed_attempts": 0,
		}).Error
}

func (r *repository) ListRetryable(ctx context.Context, since time.Time, maxFailures, limit int) ([]int64, error) {
	if limit <= 0 || maxFailures <= 0 {
		return nil, nil
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.DispatchRecord{}).
		Where("sent_at IS NULL AND last_error IS NOT NULL").
		Where("last_attempt_at >= ?", since.UTC()).
		Where("failed_attempts <= ?", maxFailures).
		Order("last_attempt_at ASC").
		Limit(limit).
		Pluck("order_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
