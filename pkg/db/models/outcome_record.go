package models

import (
	"time"

	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
)

// OutcomeRecord is an append-only audit entry written once per delivery attempt.
type OutcomeRecord struct {
	ID           int64               `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID      int64               `gorm:"column:order_id;not null;index"`
	EventType    string              `gorm:"column:event_type;not null"`
	Status       enums.OutcomeStatus `gorm:"column:status;not null"`
	ResponseCode int                 `gorm:"column:response_code;not null;default:0"`
	Message      string              `gorm:"column:message"`
	CreatedAt    time.Time           `gorm:"column:created_at;not null;index"`
}

func (OutcomeRecord) TableName() string {
	return "webhook_outcomes"
}
