package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RelistHistoryEntity is the append-only record of one relist attempt. Rows
// are immutable once CompletedAt is set; only MarkCompleted writes it.
type RelistHistoryEntity struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	AttemptID string `gorm:"type:uuid;uniqueIndex;not null" json:"attempt_id"`
	RuleID    uint   `gorm:"not null;index" json:"rule_id"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`

	StartedAt       time.Time    `gorm:"not null" json:"started_at"`
	CompletedAt     sql.NullTime `json:"completed_at"`
	DurationSeconds *float64     `json:"duration_seconds"`

	Mode   RelistMode `gorm:"type:varchar(10);not null" json:"mode"`
	Status RunStatus  `gorm:"type:varchar(20);not null" json:"status"`

	OldListingID string `gorm:"type:varchar(100)" json:"old_listing_id"`
	NewListingID string `gorm:"type:varchar(100)" json:"new_listing_id"`

	OldPrice decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"old_price"`
	NewPrice decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"new_price"`
	OldTitle sql.NullString      `gorm:"type:text" json:"old_title"`
	NewTitle sql.NullString      `gorm:"type:text" json:"new_title"`

	ErrorMessage sql.NullString `gorm:"type:text" json:"error_message"`
	SkipReason   sql.NullString `gorm:"type:text" json:"skip_reason"`
	ChecksFailed pq.StringArray `gorm:"type:text[]" json:"checks_failed"`

	WithdrawResponse datatypes.JSON `json:"withdraw_response,omitempty"`
	UpdateResponse   datatypes.JSON `json:"update_response,omitempty"`
	PublishResponse  datatypes.JSON `json:"publish_response,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (RelistHistoryEntity) TableName() string {
	return "relist_history"
}
