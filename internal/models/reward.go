package models

import (
	"time"

	"gorm.io/gorm"
)

// Reward is catalog data. Quantity nil means unlimited stock.
type Reward struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	ImageURL    string         `gorm:"size:512" json:"image_url"`
	PointsCost  int64          `gorm:"not null" json:"points_cost"`
	Quantity    *int64         `json:"quantity"`
	Active      bool           `gorm:"not null;index" json:"active"`
	ExpiresAt   *time.Time     `json:"expires_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Reward) TableName() string { return "rewards" }

func (r *Reward) Available(now time.Time) bool {
	return r.Active && (r.ExpiresAt == nil || r.ExpiresAt.After(now))
}

func (r *Reward) InStock() bool {
	return r.Quantity == nil || *r.Quantity > 0
}

// UserReward is a redemption. PointsSpent is the cost at commit time.
type UserReward struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	RewardID     uint       `gorm:"not null;index" json:"reward_id"`
	PointsSpent  int64      `gorm:"not null" json:"points_spent"`
	Status       string     `gorm:"size:20;not null;index" json:"status"`
	LedgerKey    string     `gorm:"uniqueIndex;size:128;not null" json:"-"`
	CancelReason *string    `gorm:"type:text" json:"cancel_reason,omitempty"`
	RedeemedAt   time.Time  `gorm:"not null" json:"redeemed_at"`
	FulfilledAt  *time.Time `json:"fulfilled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Reward *Reward `gorm:"foreignKey:RewardID" json:"reward,omitempty"`
}

func (UserReward) TableName() string { return "user_rewards" }
