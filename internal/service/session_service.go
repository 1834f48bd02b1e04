package service

import (
	"context"
	"log"
	"time"

	"stcoins/internal/models"
	"stcoins/internal/repository"
)

const (
	StepFetchProfile   = "fetch_profile"
	StepApplyReferral  = "apply_referral"
	StepRefreshProfile = "refresh_profile"
)

type StepResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SessionState is what the client should hold after sign-in. Balance is stale after BalanceAsOf.
type SessionState struct {
	User        *models.User         `json:"user"`
	Referral    *models.ReferredUser `json:"referral,omitempty"`
	Balance     int64                `json:"balance"`
	BalanceAsOf time.Time            `json:"balance_as_of"`
	Steps       []StepResult         `json:"steps"`
}

// SessionService runs the post-authentication workflow: an ordered list of idempotent
// steps, each safe to retry by calling AfterSignIn again.
type SessionService struct {
	userRepo  *repository.UserRepository
	referrals *ReferralService
	ledger    *LedgerService
}

func NewSessionService(userRepo *repository.UserRepository, referrals *ReferralService, ledger *LedgerService) *SessionService {
	return &SessionService{userRepo: userRepo, referrals: referrals, ledger: ledger}
}

// AfterSignIn fails only when the profile cannot be read. Later step failures are
// reported in Steps.
func (s *SessionService) AfterSignIn(ctx context.Context, userID uint) (*SessionState, error) {
	state := &SessionState{}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	state.User = u
	state.Steps = append(state.Steps, StepResult{Name: StepFetchProfile, OK: true})

	step := StepResult{Name: StepApplyReferral, OK: true}
	link, err := s.referrals.ApplyPending(ctx, userID)
	if err != nil {
		step.OK = false
		step.Error = err.Error()
		log.Printf("[session] user=%d %s: %v", userID, StepApplyReferral, err)
	}
	state.Referral = link
	state.Steps = append(state.Steps, step)

	step = StepResult{Name: StepRefreshProfile, OK: true}
	if fresh, err := s.userRepo.GetByID(ctx, userID); err != nil {
		step.OK = false
		step.Error = err.Error()
		log.Printf("[session] user=%d %s: %v", userID, StepRefreshProfile, err)
	} else {
		state.User = fresh
	}
	state.Steps = append(state.Steps, step)

	balance, asOf, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		balance, asOf = state.User.Points, time.Time{}
	}
	state.Balance = balance
	state.BalanceAsOf = asOf
	return state, nil
}
