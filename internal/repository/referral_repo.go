package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"stcoins/internal/models"

	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) WithTx(tx *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: tx}
}

// generateReferralCode returns an 8-character uppercase hex referral code.
func generateReferralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil // e.g. "A3F2C1B0"
}

// GetOrCreateCode returns the existing referral code for a user, or creates a new unique one.
func (r *ReferralRepository) GetOrCreateCode(ctx context.Context, userID uint) (*models.Referral, error) {
	var ref models.Referral
	if err := r.db.WithContext(ctx).Where("referrer_id = ?", userID).First(&ref).Error; err == nil {
		return &ref, nil
	}
	for i := 0; i < 10; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, err
		}
		ref = models.Referral{ReferrerID: userID, ReferralCode: code}
		err = r.db.WithContext(ctx).Create(&ref).Error
		if err == nil {
			return &ref, nil
		}
		if !IsDuplicate(err) {
			return nil, err
		}
		// A concurrent call may have created this user's code; otherwise it was a code collision.
		var existing models.Referral
		if r.db.WithContext(ctx).Where("referrer_id = ?", userID).First(&existing).Error == nil {
			return &existing, nil
		}
	}
	return nil, fmt.Errorf("failed to generate a unique referral code after retries")
}

// Create stores a code chosen by the caller (seeding, admin tooling).
func (r *ReferralRepository) Create(ctx context.Context, ref *models.Referral) error {
	return r.db.WithContext(ctx).Create(ref).Error
}

func (r *ReferralRepository) GetByCode(ctx context.Context, code string) (*models.Referral, error) {
	var ref models.Referral
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&ref).Error; err != nil {
		return nil, translate(err)
	}
	return &ref, nil
}

func (r *ReferralRepository) CreateLink(ctx context.Context, link *models.ReferredUser) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *ReferralRepository) GetLink(ctx context.Context, id uint) (*models.ReferredUser, error) {
	var link models.ReferredUser
	if err := r.db.WithContext(ctx).First(&link, id).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

// GetLinkByReferredUser returns the link for a user that was referred by someone.
func (r *ReferralRepository) GetLinkByReferredUser(ctx context.Context, userID uint) (*models.ReferredUser, error) {
	var link models.ReferredUser
	if err := r.db.WithContext(ctx).Where("referred_user_id = ?", userID).First(&link).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

// MarkAwarded flips points_awarded false -> true. It reports false if the flag was already set.
func (r *ReferralRepository) MarkAwarded(ctx context.Context, linkID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ReferredUser{}).
		Where("id = ? AND points_awarded = ?", linkID, false).
		Update("points_awarded", true)
	return res.RowsAffected == 1, res.Error
}

// ListByReferrer returns all users referred by the given referrer, with the referred user preloaded.
func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID uint, limit, offset int) ([]models.ReferredUser, error) {
	limit, offset = clampPage(limit, offset)
	var list []models.ReferredUser
	err := r.db.WithContext(ctx).Where("referrer_id = ?", referrerID).
		Preload("ReferredUser").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

func (r *ReferralRepository) ListUnawarded(ctx context.Context, limit int) ([]models.ReferredUser, error) {
	var list []models.ReferredUser
	err := r.db.WithContext(ctx).Where("points_awarded = ?", false).
		Order("id ASC").Limit(limit).
		Find(&list).Error
	return list, err
}
