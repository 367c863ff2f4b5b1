package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sgtm-webhook/pkg/types"
)

// Product is the catalog entry a line item resolves to.
type Product struct {
	ID         int64            `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name       string           `gorm:"column:name;not null"`
	SKU        string           `gorm:"column:sku"`
	Price      decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Categories types.StringList `gorm:"column:categories"`
	// Attributes are product-level attribute values keyed by slug (for example pa_marca).
	Attributes types.StringMap `gorm:"column:attributes"`
	// Taxonomies are term names keyed by taxonomy slug (for example product_brand).
	Taxonomies types.Taxonomies `gorm:"column:taxonomies"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
