package models

import (
	"time"

	"stcoins/internal/domain"

	"gorm.io/gorm"
)

// User is the account whose Points column is the balance of record.
// Points is written only by the ledger executor.
type User struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Username            string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email               string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash        string         `gorm:"size:255" json:"-"`
	Role                string         `gorm:"size:20;not null;default:'user'" json:"role"`
	Tier                string         `gorm:"size:20;not null;default:'Free'" json:"tier"`
	Status              string         `gorm:"size:20;not null;default:'Normal'" json:"status"`
	Points              int64          `gorm:"not null;default:0" json:"points"`
	PendingReferralCode *string        `gorm:"size:20" json:"-"`
	FCMToken            string         `gorm:"size:512" json:"-"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }
