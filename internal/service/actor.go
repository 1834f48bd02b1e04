package service

import (
	"context"
	"log"

	"stcoins/internal/domain"
)

// Actor is the authenticated caller as supplied by the identity layer.
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// Notifier receives human-readable outcomes. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, userID uint, notifType, title, message string, data map[string]interface{}) error
}

func notify(ctx context.Context, n Notifier, userID uint, notifType, title, message string, data map[string]interface{}) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, notifType, title, message, data); err != nil {
		log.Printf("[notify] user=%d type=%s: %v", userID, notifType, err)
	}
}
