package orders

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
)

// Repository is the read side of the order store.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// FindByID returns the order with its line items and resolved products,
	// or gorm.ErrRecordNotFound.
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	// ListRecentPaidIDs returns up to limit paid order ids, newest first.
	ListRecentPaidIDs(ctx context.Context, limit int) ([]int64, error)
	// SumTotals adds up order totals for the given ids.
	SumTotals(ctx context.Context, orderIDs []int64) (decimal.Decimal, error)
}
