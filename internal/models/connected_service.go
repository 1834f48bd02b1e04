package models

import (
	"time"
)

// ConnectedService stores a linked third-party account (Spotify) used by task verification.
type ConnectedService struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;uniqueIndex:idx_user_service" json:"user_id"`
	ServiceName   string     `gorm:"size:30;not null;uniqueIndex:idx_user_service" json:"service_name"`
	ServiceUserID string     `gorm:"size:128;not null" json:"service_user_id"`
	DisplayName   string     `gorm:"size:255" json:"display_name"`
	Email         string     `gorm:"size:255" json:"email"`
	Product       string     `gorm:"size:30" json:"product"`
	IsPremium     bool       `gorm:"default:false" json:"is_premium"`
	AccessToken   string     `gorm:"type:text" json:"-"`
	RefreshToken  string     `gorm:"type:text" json:"-"`
	ExpiresAt     *time.Time `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (ConnectedService) TableName() string { return "connected_services" }
