package repository

import (
	"context"
	"time"

	"stcoins/internal/models"

	"gorm.io/gorm"
)

// TaskRepository is the gorm-backed task catalog.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TaskRepository) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	var t models.Task
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// ListAvailable returns active, unexpired tasks, optionally filtered by category.
func (r *TaskRepository) ListAvailable(ctx context.Context, now time.Time, categoryID *uint) ([]models.Task, error) {
	q := r.db.WithContext(ctx).Preload("Category").
		Where("active = ? AND expires_at > ?", true, now)
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}
	var list []models.Task
	err := q.Order("expires_at ASC").Find(&list).Error
	return list, err
}

func (r *TaskRepository) CreateCategory(ctx context.Context, c *models.TaskCategory) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *TaskRepository) ListCategories(ctx context.Context) ([]models.TaskCategory, error) {
	var list []models.TaskCategory
	err := r.db.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}
