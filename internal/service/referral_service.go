package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"stcoins/config"
	"stcoins/internal/domain"
	"stcoins/internal/models"
	"stcoins/internal/repository"

	"gorm.io/gorm"
)

// ReferralService links referred users to referrers and credits the one-time bonus.
type ReferralService struct {
	referralRepo *repository.ReferralRepository
	userRepo     *repository.UserRepository
	settingRepo  *repository.SettingRepository
	ledger       *LedgerService
	notifier     Notifier
	cfg          config.LedgerConfig
}

func NewReferralService(
	referralRepo *repository.ReferralRepository,
	userRepo *repository.UserRepository,
	settingRepo *repository.SettingRepository,
	ledger *LedgerService,
	notifier Notifier,
	cfg config.LedgerConfig,
) *ReferralService {
	return &ReferralService{
		referralRepo: referralRepo,
		userRepo:     userRepo,
		settingRepo:  settingRepo,
		ledger:       ledger,
		notifier:     notifier,
		cfg:          cfg,
	}
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MyCode returns the caller's shareable code, creating it on first use.
func (s *ReferralService) MyCode(ctx context.Context, userID uint) (*models.Referral, error) {
	return s.referralRepo.GetOrCreateCode(ctx, userID)
}

func (s *ReferralService) MyReferrals(ctx context.Context, userID uint, limit, offset int) ([]models.ReferredUser, error) {
	return s.referralRepo.ListByReferrer(ctx, userID, limit, offset)
}

// ApplyReferralCode binds the referred user to the code's owner and credits the referrer.
// The link is one-shot per account. If the credit fails the link is returned together
// with the error; RecoverUnawarded or the next sign-in finishes it.
func (s *ReferralService) ApplyReferralCode(ctx context.Context, referredUserID uint, code string) (*models.ReferredUser, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}
	ref, err := s.referralRepo.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	if ref.ReferrerID == referredUserID {
		return nil, domain.ErrSelfReferral
	}
	if _, err := s.referralRepo.GetLinkByReferredUser(ctx, referredUserID); err == nil {
		return nil, domain.ErrAlreadyLinked
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	link := &models.ReferredUser{
		ReferredUserID: referredUserID,
		ReferrerID:     ref.ReferrerID,
		ReferralCode:   ref.ReferralCode,
	}
	if err := s.referralRepo.CreateLink(ctx, link); err != nil {
		if repository.IsDuplicate(err) {
			return nil, domain.ErrAlreadyLinked
		}
		return nil, err
	}
	log.Printf("[referral] user=%d linked to referrer=%d code=%s link=%d", referredUserID, ref.ReferrerID, code, link.ID)

	if err := s.CreditReferralBonus(ctx, link.ID); err != nil {
		return link, fmt.Errorf("credit referral bonus: %w", err)
	}
	if fresh, err := s.referralRepo.GetLink(ctx, link.ID); err == nil {
		link = fresh
	}
	return link, nil
}

// CreditReferralBonus credits the referrer once per link and flips points_awarded in the
// same transaction. Repeating it after success is a no-op.
func (s *ReferralService) CreditReferralBonus(ctx context.Context, linkID uint) error {
	link, err := s.referralRepo.GetLink(ctx, linkID)
	if err != nil {
		return err
	}
	if link.PointsAwarded {
		return nil
	}

	if welcome := s.settingRepo.GetInt64(ctx, domain.SettingReferredWelcomeBonus, s.cfg.ReferredWelcomeBonus); welcome > 0 {
		_, err := s.ledger.Apply(ctx, Mutation{
			UserID:    link.ReferredUserID,
			Delta:     welcome,
			Key:       ReferralWelcomeKey(link.ID),
			Type:      domain.LedgerReferralWelcome,
			Reference: fmt.Sprintf("referred_user:%d", link.ID),
		}, nil)
		switch {
		case err == nil:
			notify(ctx, s.notifier, link.ReferredUserID, domain.NotifReferralWelcome, "Welcome bonus",
				fmt.Sprintf("You received %d points for joining with a referral code.", welcome),
				map[string]interface{}{"points": welcome})
		case errors.Is(err, domain.ErrDuplicateMutation):
		default:
			return err
		}
	}

	bonus := s.settingRepo.GetInt64(ctx, domain.SettingReferralBonus, s.cfg.ReferralBonus)
	if bonus < 0 {
		bonus = 0
	}
	res, err := s.ledger.Apply(ctx, Mutation{
		UserID:    link.ReferrerID,
		Delta:     bonus,
		Key:       ReferralBonusKey(link.ID),
		Type:      domain.LedgerReferralBonus,
		Reference: fmt.Sprintf("referred_user:%d", link.ID),
	}, func(tx *gorm.DB) error {
		ok, err := s.referralRepo.WithTx(tx).MarkAwarded(ctx, link.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidState
		}
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateMutation) {
		return nil
	}
	if err != nil {
		return err
	}
	notify(ctx, s.notifier, link.ReferrerID, domain.NotifReferralCredited, "Referral bonus",
		fmt.Sprintf("You earned %d points for a referral.", bonus),
		map[string]interface{}{"points": bonus, "balance": res.Balance, "referred_user_id": link.ReferredUserID})
	return nil
}

// CapturePending stores a code received before the user had a confirmed identity.
func (s *ReferralService) CapturePending(ctx context.Context, userID uint, code string) error {
	code = NormalizeCode(code)
	if code == "" {
		return nil
	}
	return s.userRepo.SetPendingReferralCode(ctx, userID, &code)
}

// ApplyPending is safe to call on every sign-in. With a link in place it only finishes
// an interrupted credit; otherwise it applies the captured code, if any.
func (s *ReferralService) ApplyPending(ctx context.Context, userID uint) (*models.ReferredUser, error) {
	link, err := s.referralRepo.GetLinkByReferredUser(ctx, userID)
	if err == nil {
		if !link.PointsAwarded {
			if err := s.CreditReferralBonus(ctx, link.ID); err != nil {
				return link, err
			}
			link.PointsAwarded = true
		}
		s.clearPending(ctx, userID)
		return link, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.PendingReferralCode == nil || *u.PendingReferralCode == "" {
		return nil, nil
	}
	link, err = s.ApplyReferralCode(ctx, userID, *u.PendingReferralCode)
	switch {
	case err == nil, errors.Is(err, domain.ErrAlreadyLinked):
		s.clearPending(ctx, userID)
	case errors.Is(err, domain.ErrInvalidCode), errors.Is(err, domain.ErrSelfReferral):
		log.Printf("[referral] user=%d dropping pending code %q: %v", userID, *u.PendingReferralCode, err)
		s.clearPending(ctx, userID)
	}
	return link, err
}

// RecoverUnawarded re-drives the credit for links created without one.
func (s *ReferralService) RecoverUnawarded(ctx context.Context) (int, error) {
	links, err := s.referralRepo.ListUnawarded(ctx, 100)
	if err != nil {
		return 0, err
	}
	credited := 0
	for _, link := range links {
		if err := s.CreditReferralBonus(ctx, link.ID); err != nil {
			log.Printf("[referral] recover link=%d: %v", link.ID, err)
			continue
		}
		credited++
	}
	return credited, nil
}

func (s *ReferralService) clearPending(ctx context.Context, userID uint) {
	if err := s.userRepo.SetPendingReferralCode(ctx, userID, nil); err != nil {
		log.Printf("[referral] user=%d clear pending code: %v", userID, err)
	}
}
