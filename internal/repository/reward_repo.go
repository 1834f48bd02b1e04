package repository

import (
	"context"
	"time"

	"stcoins/internal/domain"
	"stcoins/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardRepository covers the reward catalog and user redemptions.
type RewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

func (r *RewardRepository) WithTx(tx *gorm.DB) *RewardRepository {
	return &RewardRepository{db: tx}
}

func (r *RewardRepository) Create(ctx context.Context, rw *models.Reward) error {
	return r.db.WithContext(ctx).Create(rw).Error
}

func (r *RewardRepository) GetReward(ctx context.Context, id uint) (*models.Reward, error) {
	var rw models.Reward
	if err := r.db.WithContext(ctx).First(&rw, id).Error; err != nil {
		return nil, translate(err)
	}
	return &rw, nil
}

// LockReward re-reads the reward row with FOR UPDATE inside a transaction.
func (r *RewardRepository) LockReward(ctx context.Context, id uint) (*models.Reward, error) {
	var rw models.Reward
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&rw, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rw, nil
}

func (r *RewardRepository) ListAvailable(ctx context.Context, now time.Time) ([]models.Reward, error) {
	var list []models.Reward
	err := r.db.WithContext(ctx).
		Where("active = ? AND (expires_at IS NULL OR expires_at > ?)", true, now).
		Order("points_cost ASC").
		Find(&list).Error
	return list, err
}

// DecrementStock takes one unit from a finite reward; false means nothing was left.
func (r *RewardRepository) DecrementStock(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Reward{}).
		Where("id = ? AND quantity IS NOT NULL AND quantity > 0", id).
		UpdateColumn("quantity", gorm.Expr("quantity - 1"))
	return res.RowsAffected == 1, res.Error
}

func (r *RewardRepository) RestoreStock(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Reward{}).
		Where("id = ? AND quantity IS NOT NULL", id).
		UpdateColumn("quantity", gorm.Expr("quantity + 1")).Error
}

func (r *RewardRepository) CreateRedemption(ctx context.Context, ur *models.UserReward) error {
	return r.db.WithContext(ctx).Create(ur).Error
}

func (r *RewardRepository) GetRedemption(ctx context.Context, id uint) (*models.UserReward, error) {
	var ur models.UserReward
	if err := r.db.WithContext(ctx).Preload("Reward").First(&ur, id).Error; err != nil {
		return nil, translate(err)
	}
	return &ur, nil
}

func (r *RewardRepository) ListRedemptions(ctx context.Context, userID uint, status string, limit, offset int) ([]models.UserReward, error) {
	limit, offset = clampPage(limit, offset)
	q := r.db.WithContext(ctx).Preload("Reward")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var list []models.UserReward
	err := q.Order("redeemed_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// CancelPending moves a pending redemption to cancelled.
func (r *RewardRepository) CancelPending(ctx context.Context, id uint, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.UserReward{}).
		Where("id = ? AND status = ?", id, domain.RedemptionPending).
		Updates(map[string]interface{}{"status": domain.RedemptionCancelled, "cancel_reason": reason})
	return res.RowsAffected == 1, res.Error
}

func (r *RewardRepository) FulfillPending(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.UserReward{}).
		Where("id = ? AND status = ?", id, domain.RedemptionPending).
		Updates(map[string]interface{}{"status": domain.RedemptionFulfilled, "fulfilled_at": at})
	return res.RowsAffected == 1, res.Error
}
