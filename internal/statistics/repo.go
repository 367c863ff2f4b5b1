package statistics

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/angelmondragon/sgtm-webhook/pkg/pagination"
)

// Repository is the outcome store. Rows are only ever appended or expired.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AppendOutcome(ctx context.Context, record *models.OutcomeRecord) error
	// DistinctOrderIDs lists orders with at least one outcome of status in [from, to).
	DistinctOrderIDs(ctx context.Context, status enums.OutcomeStatus, from, to time.Time) ([]int64, error)
	LastSuccess(ctx context.Context) (*models.OutcomeRecord, error)
	// ListByOrder pages an order's outcomes newest first and returns the next cursor.
	ListByOrder(ctx context.Context, orderID int64, page pagination.Params) ([]models.OutcomeRecord, string, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an outcome repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) AppendOutcome(ctx context.Context, record *models.OutcomeRecord) error {
	if record == nil {
		return errors.New("outcome record is nil")
	}
	if !record.Status.IsValid() {
		return errors.New("outcome record has invalid status")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) DistinctOrderIDs(ctx context.Context, status enums.OutcomeStatus, from, to time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.OutcomeRecord{}).
		Distinct("order_id").
		Where("status = ?", status).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("order_id ASC").
		Pluck("order_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) LastSuccess(ctx context.Context) (*models.OutcomeRecord, error) {
	var record models.OutcomeRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.OutcomeStatusSuccess).
		Order("created_at DESC").
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID int64, page pagination.Params) ([]models.OutcomeRecord, string, error) {
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.NormalizeLimit(page.Limit)

	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var records []models.OutcomeRecord
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&records).Error
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(records) > limit {
		records = records[:limit]
		last := records[len(records)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return records, next, nil
}

func (r *repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&models.OutcomeRecord{})
	return res.RowsAffected, res.Error
}
