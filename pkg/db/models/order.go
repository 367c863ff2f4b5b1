package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/angelmondragon/sgtm-webhook/pkg/types"
)

// Order is the storefront order as read by the dispatcher. The dispatcher never writes it.
type Order struct {
	ID                 int64              `gorm:"column:id;primaryKey;autoIncrement:false"`
	Status             enums.OrderStatus  `gorm:"column:status;not null"`
	PaidAt             *time.Time         `gorm:"column:paid_at"`
	Currency           string             `gorm:"column:currency;not null"`
	Subtotal           decimal.Decimal    `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax                decimal.Decimal    `gorm:"column:tax;type:numeric(12,2);not null"`
	Shipping           decimal.Decimal    `gorm:"column:shipping;type:numeric(12,2);not null"`
	Discount           decimal.Decimal    `gorm:"column:discount;type:numeric(12,2);not null"`
	Total              decimal.Decimal    `gorm:"column:total;type:numeric(12,2);not null"`
	Billing            BillingIdentity    `gorm:"embedded;embeddedPrefix:billing_"`
	CustomerID         *int64             `gorm:"column:customer_id"`
	CustomerUsername   string             `gorm:"column:customer_username"`
	CheckoutURL        string             `gorm:"column:checkout_url"`
	PaymentMethod      string             `gorm:"column:payment_method"`
	PaymentMethodTitle string             `gorm:"column:payment_method_title"`
	OrderKey           string             `gorm:"column:order_key"`
	CouponCodes        types.StringList   `gorm:"column:coupon_codes"`
	Attribution        *types.Attribution `gorm:"column:attribution"`
	Items              []OrderLineItem    `gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// BillingIdentity holds the billing contact fields used for user matching.
type BillingIdentity struct {
	Email     string `gorm:"column:email"`
	Phone     string `gorm:"column:phone"`
	FirstName string `gorm:"column:first_name"`
	LastName  string `gorm:"column:last_name"`
	Company   string `gorm:"column:company"`
	City      string `gorm:"column:city"`
	State     string `gorm:"column:state"`
	Postcode  string `gorm:"column:postcode"`
	Country   string `gorm:"column:country"`
}

// IsPaid reports whether the order has settled payment, either through an
// explicit paid timestamp or a status the store only reaches after payment.
func (o *Order) IsPaid() bool {
	if o == nil {
		return false
	}
	return o.PaidAt != nil || o.Status.IsPaid()
}

// IsGuest reports whether the order was placed without a customer account.
func (o *Order) IsGuest() bool {
	return o == nil || o.CustomerID == nil || *o.CustomerID == 0
}
