package models

import "time"

type UserEntity struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	Email                   string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	MarketplaceRefreshToken string     `gorm:"type:text" json:"-"`
	MarketplaceLinkedAt     *time.Time `json:"marketplace_linked_at"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserEntity) TableName() string {
	return "users"
}
