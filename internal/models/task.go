package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskCategory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (TaskCategory) TableName() string { return "task_categories" }

// Task is catalog data; the ledger only reads it.
type Task struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	CategoryID           *uint          `gorm:"index" json:"category_id"`
	Title                string         `gorm:"size:255;not null" json:"title"`
	Description          string         `gorm:"type:text" json:"description"`
	Instructions         string         `gorm:"type:text" json:"instructions"`
	Difficulty           string         `gorm:"size:20;default:'easy'" json:"difficulty"`
	RedirectURL          string         `gorm:"size:512" json:"redirect_url"`
	Points               int64          `gorm:"not null" json:"points"`
	ExpiresAt            time.Time      `gorm:"not null;index" json:"expires_at"`
	VerificationType     string         `gorm:"size:20;not null;default:'manual-review'" json:"verification_type"`
	VerificationProvider string         `gorm:"size:30" json:"verification_provider"` // e.g. spotify
	VerificationTarget   string         `gorm:"size:255" json:"verification_target"`   // provider-specific, e.g. track id
	AllowResubmission    bool           `gorm:"default:false" json:"allow_resubmission"`
	Active               bool           `gorm:"not null;index" json:"active"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`

	Category *TaskCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (Task) TableName() string { return "tasks" }

func (t *Task) Expired(now time.Time) bool { return !t.ExpiresAt.After(now) }
