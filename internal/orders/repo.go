package orders

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
)

const maxRecentLimit = 100

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC").Order("id ASC")
		}).
		Preload("Items.Product").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListRecentPaidIDs(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("paid_at IS NOT NULL OR status IN ?", enums.PaidOrderStatuses()).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SumTotals adds in Go; sqlite stores numeric columns as REAL.
func (r *repository) SumTotals(ctx context.Context, orderIDs []int64) (decimal.Decimal, error) {
	total := decimal.Zero
	if len(orderIDs) == 0 {
		return total, nil
	}
	var totals []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ?", orderIDs).
		Pluck("total", &totals).Error
	if err != nil {
		return decimal.Zero, err
	}
	for _, t := range totals {
		total = total.Add(t)
	}
	return total, nil
}
