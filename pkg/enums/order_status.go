package enums

import "fmt"

// OrderStatus mirrors the lifecycle states exposed by the order store.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusOnHold     OrderStatus = "on-hold"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusFailed     OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusOnHold,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRefunded,
	OrderStatusFailed,
}

// paidOrderStatuses are the statuses the store only reaches after payment.
var paidOrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusCompleted,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsPaid reports whether the status implies a settled payment.
func (s OrderStatus) IsPaid() bool {
	for _, candidate := range paidOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// PaidOrderStatuses returns the statuses treated as paid.
func PaidOrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(paidOrderStatuses))
	copy(out, paidOrderStatuses)
	return out
}

// ParseOrderStatus converts a raw string into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
