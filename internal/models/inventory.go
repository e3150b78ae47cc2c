package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingEntity mirrors the marketplace-side state of a sellable item that the
// inventory subsystem keeps in sync. The relist core only reads it through
// the safety checks.
type ListingEntity struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	OfferID   string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"offer_id"`
	SKU       string          `gorm:"type:varchar(100);not null;index" json:"sku"`
	Title     string          `gorm:"type:text" json:"title"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Quantity  int             `gorm:"not null;default:0" json:"quantity"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ListingEntity) TableName() string {
	return "listings"
}

type OrderEntity struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	SKU         string     `gorm:"type:varchar(100);not null;index" json:"sku"`
	CompletedAt *time.Time `gorm:"index" json:"completed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (OrderEntity) TableName() string {
	return "orders"
}

type ReturnCaseEntity struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	SKU       string     `gorm:"type:varchar(100);not null;index" json:"sku"`
	ClosedAt  *time.Time `json:"closed_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (ReturnCaseEntity) TableName() string {
	return "return_cases"
}
