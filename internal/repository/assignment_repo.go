package repository

import (
	"context"
	"time"

	"stcoins/internal/domain"
	"stcoins/internal/models"

	"gorm.io/gorm"
)

// AssignmentRepository persists user tasks and their submissions.
// State changes are conditional updates; a false result means the row was not in the expected state.
type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) WithTx(tx *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: tx}
}

func (r *AssignmentRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *AssignmentRepository) Create(ctx context.Context, ut *models.UserTask) error {
	return r.db.WithContext(ctx).Create(ut).Error
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id uint) (*models.UserTask, error) {
	var ut models.UserTask
	if err := r.db.WithContext(ctx).Preload("Task").First(&ut, id).Error; err != nil {
		return nil, translate(err)
	}
	return &ut, nil
}

// GetLive returns the assignment currently holding the (user, task) slot.
func (r *AssignmentRepository) GetLive(ctx context.Context, userID, taskID uint) (*models.UserTask, error) {
	var ut models.UserTask
	err := r.db.WithContext(ctx).
		Where("active_slot = ?", models.ActiveSlotFor(userID, taskID)).
		First(&ut).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ut, nil
}

func (r *AssignmentRepository) ListByUser(ctx context.Context, userID uint, status string) ([]models.UserTask, error) {
	q := r.db.WithContext(ctx).Preload("Task").Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var list []models.UserTask
	err := q.Order("updated_at DESC").Find(&list).Error
	return list, err
}

func (r *AssignmentRepository) ListByStatus(ctx context.Context, status string, limit int) ([]models.UserTask, error) {
	var list []models.UserTask
	err := r.db.WithContext(ctx).Preload("Task").
		Where("status = ?", status).
		Order("id ASC").Limit(limit).
		Find(&list).Error
	return list, err
}

// Transition moves an assignment from one state to another.
func (r *AssignmentRepository) Transition(ctx context.Context, id uint, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.UserTask{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

// MarkSubmitted moves in_progress to submitted and links the submission.
func (r *AssignmentRepository) MarkSubmitted(ctx context.Context, id, submissionID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.UserTask{}).
		Where("id = ? AND status = ?", id, domain.TaskStateInProgress).
		Updates(map[string]interface{}{"status": domain.TaskStateSubmitted, "submission_id": submissionID})
	return res.RowsAffected == 1, res.Error
}

// MarkCompleted sets points_earned and completed_at exactly once, from approved only.
func (r *AssignmentRepository) MarkCompleted(ctx context.Context, id uint, points int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.UserTask{}).
		Where("id = ? AND status = ? AND points_earned IS NULL", id, domain.TaskStateApproved).
		Updates(map[string]interface{}{
			"status":        domain.TaskStateCompleted,
			"points_earned": points,
			"completed_at":  at,
		})
	return res.RowsAffected == 1, res.Error
}

// ExpireStale marks not-yet-submitted assignments of expired tasks as expired and frees their slot.
func (r *AssignmentRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	expired := r.db.Model(&models.Task{}).Select("id").Where("expires_at <= ?", now)
	res := r.db.WithContext(ctx).Model(&models.UserTask{}).
		Where("status IN ?", []string{domain.TaskStateNotStarted, domain.TaskStateInProgress}).
		Where("task_id IN (?)", expired).
		Updates(map[string]interface{}{"status": domain.TaskStateExpired, "active_slot": nil})
	return res.RowsAffected, res.Error
}

func (r *AssignmentRepository) CreateSubmission(ctx context.Context, s *models.TaskSubmission) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *AssignmentRepository) GetSubmission(ctx context.Context, id uint) (*models.TaskSubmission, error) {
	var s models.TaskSubmission
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// MarkReviewed stamps the reviewer once; a second call finds reviewed_at set and changes nothing.
func (r *AssignmentRepository) MarkReviewed(ctx context.Context, id uint, reviewer string, notes *string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.TaskSubmission{}).
		Where("id = ? AND reviewed_at IS NULL", id).
		Updates(map[string]interface{}{
			"reviewed_by": reviewer,
			"reviewed_at": at,
			"admin_notes": notes,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *AssignmentRepository) ListPendingSubmissions(ctx context.Context, limit, offset int) ([]models.TaskSubmission, error) {
	limit, offset = clampPage(limit, offset)
	var list []models.TaskSubmission
	err := r.db.WithContext(ctx).Preload("UserTask.Task").
		Where("reviewed_at IS NULL").
		Order("submitted_at ASC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}
