package models

import (
	"time"
)

// Referral is a user's own shareable code. Each user has at most one.
type Referral struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ReferrerID   uint      `gorm:"uniqueIndex;not null" json:"referrer_id"`
	ReferralCode string    `gorm:"uniqueIndex;size:20;not null" json:"referral_code"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Referral) TableName() string { return "referrals" }

// ReferredUser binds a referred user to the code they used.
// The unique index on ReferredUserID makes application first-write-wins.
type ReferredUser struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ReferredUserID uint      `gorm:"uniqueIndex;not null" json:"referred_user_id"`
	ReferrerID     uint      `gorm:"not null;index" json:"referrer_id"`
	ReferralCode   string    `gorm:"size:20;not null" json:"referral_code"`
	PointsAwarded  bool      `gorm:"not null;default:false;index" json:"points_awarded"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	ReferredUser *User `gorm:"foreignKey:ReferredUserID" json:"referred_user,omitempty"`
}

func (ReferredUser) TableName() string { return "referred_users" }
