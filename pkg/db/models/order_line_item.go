package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLineItem is one purchased line. Product is nil when the product was
// deleted after purchase.
type OrderLineItem struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   int64           `gorm:"column:order_id;not null;index"`
	Position  int             `gorm:"column:position;not null;default:0"`
	ProductID *int64          `gorm:"column:product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
	Name      string          `gorm:"column:name;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
