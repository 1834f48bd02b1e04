package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"stcoins/internal/domain"
	"stcoins/internal/models"
	"stcoins/internal/repository"
)

// NotificationService stores in-app notifications and mirrors them to FCM.
type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	fcm      *FCMService
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, fcm: fcm}
}

func (s *NotificationService) Notify(ctx context.Context, userID uint, notifType, title, message string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(ctx, &models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    dataJSON,
	})
	if err != nil {
		return err
	}
	go s.sendPush(userID, notifType, title, message, data)
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListByUserID(ctx, userID, limit, offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	return s.repo.MarkRead(ctx, id, userID)
}

// NotifyPointsAdjusted tells a user about an admin balance correction.
func (s *NotificationService) NotifyPointsAdjusted(ctx context.Context, entry models.LedgerEntry) error {
	verb := "added to"
	amount := entry.Delta
	if amount < 0 {
		verb, amount = "removed from", -amount
	}
	return s.Notify(ctx, entry.UserID, domain.NotifPointsAdjusted, "Points adjusted",
		fmt.Sprintf("%d points were %s your balance.", amount, verb),
		map[string]interface{}{"delta": entry.Delta, "balance": entry.BalanceAfter})
}

func (s *NotificationService) sendPush(userID uint, notifType, title, message string, data map[string]interface{}) {
	if s.fcm == nil || s.userRepo == nil {
		return
	}
	ctx := context.Background()
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || u.FCMToken == "" {
		return
	}
	if err := s.fcm.SendToUser(ctx, u.FCMToken, notifType, title, message, data); err != nil {
		log.Printf("[notify] push user=%d type=%s: %v", userID, notifType, err)
	}
}
