package repository

import (
	"context"

	"stcoins/internal/domain"
	"stcoins/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository owns the balance column and the idempotency records.
// Callers outside the ledger service must not use the write methods.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) WithTx(tx *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

func (r *LedgerRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// LockUser reads the account row with SELECT ... FOR UPDATE.
func (r *LedgerRepository) LockUser(ctx context.Context, userID uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&u, userID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// GetByKey returns domain.ErrNotFound when the key has not been applied.
func (r *LedgerRepository) GetByKey(ctx context.Context, key string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	res := r.db.WithContext(ctx).Where("idempotency_key = ?", key).Limit(1).Find(&e)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

func (r *LedgerRepository) SetBalance(ctx context.Context, userID uint, points int64) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("points", points).Error
}

func (r *LedgerRepository) Append(ctx context.Context, e *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *LedgerRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.LedgerEntry, int64, error) {
	limit, offset = clampPage(limit, offset)
	q := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("user_id = ?", userID)
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.LedgerEntry
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// Balance reads the balance of record without locking.
func (r *LedgerRepository) Balance(ctx context.Context, userID uint) (int64, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Select("id", "points").First(&u, userID).Error; err != nil {
		return 0, translate(err)
	}
	return u.Points, nil
}
