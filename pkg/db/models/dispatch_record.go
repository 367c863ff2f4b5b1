package models

import (
	"time"

	"github.com/angelmondragon/sgtm-webhook/pkg/types"
)

// DispatchRecord holds the idempotency markers for one order. SentAt and
// LastError are never both set. FailedAttempts counts failures since the
// record was last cleared or sent.
type DispatchRecord struct {
	OrderID        int64                   `gorm:"column:order_id;primaryKey;autoIncrement:false"`
	SentAt         *time.Time              `gorm:"column:sent_at"`
	LastAttemptAt  *time.Time              `gorm:"column:last_attempt_at"`
	LastError      *types.DispatchError    `gorm:"column:last_error"`
	LastResponse   *types.DispatchResponse `gorm:"column:last_response"`
	FailedAttempts int                     `gorm:"column:failed_attempts;not null;default:0"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (DispatchRecord) TableName() string {
	return "webhook_dispatch_records"
}

// IsSent reports whether the order already reached terminal success.
func (r *DispatchRecord) IsSent() bool {
	return r != nil && r.SentAt != nil
}

// InFlight reports whether the latest attempt may still be delivering at now.
// An attempt is finished once an error stamped at or after it is recorded,
// and abandoned once window has elapsed.
func (r *DispatchRecord) InFlight(now time.Time, window time.Duration) bool {
	if r == nil || r.SentAt != nil || r.LastAttemptAt == nil {
		return false
	}
	if r.LastError != nil && !r.LastError.Timestamp.Before(*r.LastAttemptAt) {
		return false
	}
	return now.Sub(*r.LastAttemptAt) < window
}
