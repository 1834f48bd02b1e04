package repository

import (
	"context"

	"stcoins/internal/models"

	"gorm.io/gorm"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *AuditLogRepository) List(ctx context.Context, action string, limit, offset int) ([]models.AuditLog, error) {
	limit, offset = clampPage(limit, offset)
	q := r.db.WithContext(ctx)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	var list []models.AuditLog
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
