package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"stcoins/internal/domain"
	"stcoins/internal/models"
	"stcoins/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RedemptionService spends points on rewards. The debit, the stock decrement and the
// redemption record commit in one ledger transaction.
type RedemptionService struct {
	rewardRepo *repository.RewardRepository
	ledger     *LedgerService
	notifier   Notifier
	now        func() time.Time
}

func NewRedemptionService(rewardRepo *repository.RewardRepository, ledger *LedgerService, notifier Notifier) *RedemptionService {
	return &RedemptionService{
		rewardRepo: rewardRepo,
		ledger:     ledger,
		notifier:   notifier,
		now:        time.Now,
	}
}

func (s *RedemptionService) ListRewards(ctx context.Context) ([]models.Reward, error) {
	return s.rewardRepo.ListAvailable(ctx, s.now())
}

func (s *RedemptionService) MyRedemptions(ctx context.Context, userID uint, status string, limit, offset int) ([]models.UserReward, error) {
	return s.rewardRepo.ListRedemptions(ctx, userID, status, limit, offset)
}

// ListRedemptions is the admin view across all users.
func (s *RedemptionService) ListRedemptions(ctx context.Context, actor Actor, status string, limit, offset int) ([]models.UserReward, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.rewardRepo.ListRedemptions(ctx, 0, status, limit, offset)
}

// Redeem validates the reward against the current balance and stock, then debits it.
// Everything checked up front is checked again under lock at commit time.
func (s *RedemptionService) Redeem(ctx context.Context, userID, rewardID uint) (*models.UserReward, error) {
	reward, err := s.rewardRepo.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if !reward.Available(s.now()) {
		return nil, domain.ErrNotActive
	}
	if !reward.InStock() {
		return nil, domain.ErrOutOfStock
	}
	balance, _, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < reward.PointsCost {
		return nil, domain.ErrInsufficientBalance
	}

	cost := reward.PointsCost
	key := RedemptionKey(uuid.NewString())
	var ur *models.UserReward
	_, err = s.ledger.Apply(ctx, Mutation{
		UserID:    userID,
		Delta:     -cost,
		Key:       key,
		Type:      domain.LedgerRedemption,
		Reference: fmt.Sprintf("reward:%d", rewardID),
	}, func(tx *gorm.DB) error {
		repo := s.rewardRepo.WithTx(tx)
		locked, err := repo.LockReward(ctx, rewardID)
		if err != nil {
			return err
		}
		now := s.now()
		if !locked.Available(now) {
			return domain.ErrNotActive
		}
		if locked.PointsCost != cost {
			return domain.ErrRewardChanged
		}
		if locked.Quantity != nil {
			ok, err := repo.DecrementStock(ctx, rewardID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrOutOfStock
			}
		}
		ur = &models.UserReward{
			UserID:      userID,
			RewardID:    rewardID,
			PointsSpent: locked.PointsCost,
			Status:      domain.RedemptionPending,
			LedgerKey:   key,
			RedeemedAt:  now,
		}
		return repo.CreateRedemption(ctx, ur)
	})
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return nil, domain.ErrInsufficientBalance
	}
	if err != nil {
		return nil, err
	}
	ur.Reward = reward
	log.Printf("[redeem] user=%d reward=%d redemption=%d spent=%d", userID, rewardID, ur.ID, ur.PointsSpent)
	notify(ctx, s.notifier, userID, domain.NotifRedemptionCreated, "Reward redeemed",
		fmt.Sprintf("You redeemed \"%s\" for %d points.", reward.Name, ur.PointsSpent),
		map[string]interface{}{"redemption_id": ur.ID})
	return ur, nil
}

// CancelRedemption reverses a pending redemption with a compensating credit under its
// own key, restoring stock in the same transaction.
func (s *RedemptionService) CancelRedemption(ctx context.Context, actor Actor, redemptionID uint, reason string) (*models.UserReward, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	ur, err := s.rewardRepo.GetRedemption(ctx, redemptionID)
	if err != nil {
		return nil, err
	}
	if ur.Status != domain.RedemptionPending {
		return nil, domain.ErrInvalidState
	}
	reason = strings.TrimSpace(reason)

	_, err = s.ledger.Apply(ctx, Mutation{
		UserID:    ur.UserID,
		Delta:     ur.PointsSpent,
		Key:       RedemptionCancelKey(ur.LedgerKey),
		Type:      domain.LedgerRedemptionCancel,
		Reference: fmt.Sprintf("user_reward:%d", ur.ID),
	}, func(tx *gorm.DB) error {
		repo := s.rewardRepo.WithTx(tx)
		ok, err := repo.CancelPending(ctx, ur.ID, reason)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidState
		}
		return repo.RestoreStock(ctx, ur.RewardID)
	})
	if errors.Is(err, domain.ErrDuplicateMutation) {
		return s.rewardRepo.GetRedemption(ctx, ur.ID)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("[redeem] redemption=%d cancelled by %d: %s", ur.ID, actor.UserID, reason)

	fresh, err := s.rewardRepo.GetRedemption(ctx, ur.ID)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Your redemption was cancelled and %d points were returned.", ur.PointsSpent)
	if reason != "" {
		msg += " Reason: " + reason
	}
	notify(ctx, s.notifier, ur.UserID, domain.NotifRedemptionCancelled, "Redemption cancelled", msg,
		map[string]interface{}{"redemption_id": ur.ID, "points": ur.PointsSpent})
	return fresh, nil
}

// FulfillRedemption marks a pending redemption delivered. Balances are not touched.
func (s *RedemptionService) FulfillRedemption(ctx context.Context, actor Actor, redemptionID uint) (*models.UserReward, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	ok, err := s.rewardRepo.FulfillPending(ctx, redemptionID, s.now())
	if err != nil {
		return nil, err
	}
	ur, err := s.rewardRepo.GetRedemption(ctx, redemptionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidState
	}
	notify(ctx, s.notifier, ur.UserID, domain.NotifRedemptionFulfilled, "Reward on its way",
		"Your redemption has been fulfilled.", map[string]interface{}{"redemption_id": ur.ID})
	return ur, nil
}
