package repository

import (
	"context"
	"time"

	"stcoins/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConnectedAccount is a linked account joined with the owning profile.
type ConnectedAccount struct {
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Product     string    `json:"product"`
	IsPremium   bool      `json:"is_premium"`
	ConnectedAt time.Time `json:"connected_at"`
}

type ConnectedServiceRepository struct {
	db *gorm.DB
}

func NewConnectedServiceRepository(db *gorm.DB) *ConnectedServiceRepository {
	return &ConnectedServiceRepository{db: db}
}

func (r *ConnectedServiceRepository) Get(ctx context.Context, userID uint, service string) (*models.ConnectedService, error) {
	var cs models.ConnectedService
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND service_name = ?", userID, service).
		First(&cs).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cs, nil
}

// Upsert inserts or replaces the connection for (user, service).
func (r *ConnectedServiceRepository) Upsert(ctx context.Context, cs *models.ConnectedService) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "service_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"service_user_id", "display_name", "email", "product", "is_premium",
			"access_token", "refresh_token", "expires_at", "updated_at",
		}),
	}).Create(cs).Error
}

func (r *ConnectedServiceRepository) Update(ctx context.Context, cs *models.ConnectedService) error {
	return r.db.WithContext(ctx).Save(cs).Error
}

// ListByService lists every account linked to service, newest first.
func (r *ConnectedServiceRepository) ListByService(ctx context.Context, service string, limit, offset int) ([]ConnectedAccount, int64, error) {
	limit, offset = clampPage(limit, offset)
	q := r.db.WithContext(ctx).
		Table("connected_services AS cs").
		Joins("JOIN users u ON u.id = cs.user_id").
		Where("cs.service_name = ?", service).
		Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []ConnectedAccount
	err := q.Select("cs.user_id, u.username, cs.display_name, cs.email, cs.product, cs.is_premium, cs.created_at AS connected_at").
		Order("cs.created_at DESC, cs.id DESC").
		Limit(limit).Offset(offset).
		Scan(&list).Error
	return list, total, err
}
