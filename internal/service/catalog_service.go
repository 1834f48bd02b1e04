package service

import (
	"context"
	"errors"
	"strings"

	"stcoins/internal/domain"
	"stcoins/internal/models"
	"stcoins/internal/repository"
)

var ErrInvalidCatalogItem = errors.New("invalid catalog item")

// CatalogService is the admin write side of tasks and rewards.
type CatalogService struct {
	taskRepo   *repository.TaskRepository
	rewardRepo *repository.RewardRepository
}

func NewCatalogService(taskRepo *repository.TaskRepository, rewardRepo *repository.RewardRepository) *CatalogService {
	return &CatalogService{taskRepo: taskRepo, rewardRepo: rewardRepo}
}

func (s *CatalogService) CreateTask(ctx context.Context, actor Actor, t *models.Task) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" || t.Points <= 0 || t.ExpiresAt.IsZero() {
		return ErrInvalidCatalogItem
	}
	switch t.VerificationType {
	case "":
		t.VerificationType = domain.VerificationManualReview
	case domain.VerificationAutomatic, domain.VerificationManualReview, domain.VerificationMediaRequired:
	default:
		return ErrInvalidCatalogItem
	}
	return s.taskRepo.Create(ctx, t)
}

func (s *CatalogService) CreateCategory(ctx context.Context, actor Actor, c *models.TaskCategory) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidCatalogItem
	}
	err := s.taskRepo.CreateCategory(ctx, c)
	if repository.IsDuplicate(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (s *CatalogService) CreateReward(ctx context.Context, actor Actor, r *models.Reward) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || r.PointsCost <= 0 || (r.Quantity != nil && *r.Quantity < 0) {
		return ErrInvalidCatalogItem
	}
	return s.rewardRepo.Create(ctx, r)
}
