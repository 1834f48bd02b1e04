package models

import (
	"time"
)

// LedgerEntry is the append-only idempotency record of an applied mutation.
// IdempotencyKey is unique across the whole system, not per user.
type LedgerEntry struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	IdempotencyKey string    `gorm:"uniqueIndex;size:128;not null" json:"idempotency_key"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Delta          int64     `gorm:"not null" json:"delta"` // positive = credit, negative = debit
	BalanceAfter   int64     `gorm:"not null" json:"balance_after"`
	Type           string    `gorm:"size:30;not null;index" json:"type"`
	Reference      string    `gorm:"size:128" json:"reference"`
	AppliedAt      time.Time `gorm:"not null;index" json:"applied_at"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }
