package service

import (
	"context"
	"errors"
	"strings"

	"stcoins/config"
	"stcoins/internal/auth"
	"stcoins/internal/domain"
	"stcoins/internal/models"
	"stcoins/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailExists    = errors.New("email already registered")
	ErrUsernameExists = errors.New("username already taken")
	ErrInvalidCreds   = errors.New("invalid email or password")
)

type AuthService struct {
	cfg       *config.Config
	userRepo  *repository.UserRepository
	referrals *ReferralService
}

func NewAuthService(cfg *config.Config, userRepo *repository.UserRepository, referrals *ReferralService) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo, referrals: referrals}
}

// Register creates a user account. A referral code given at sign-up is only captured
// here; the post-authentication workflow applies it.
func (s *AuthService) Register(ctx context.Context, email, username, password, referralCode string) (*models.User, string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, "", "", ErrEmailExists
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", "", err
	}
	_, err = s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return nil, "", "", ErrUsernameExists
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", err
	}
	u := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Tier:         domain.TierFree,
		Status:       domain.StatusNormal,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if repository.IsDuplicate(err) {
			return nil, "", "", ErrEmailExists
		}
		return nil, "", "", err
	}
	if s.referrals != nil && referralCode != "" {
		if err := s.referrals.CapturePending(ctx, u.ID, referralCode); err != nil {
			return nil, "", "", err
		}
	}
	access, refresh, err := s.issue(u)
	if err != nil {
		return u, "", "", err
	}
	return u, access, refresh, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, string, error) {
	u, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", "", ErrInvalidCreds
		}
		return nil, "", "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", "", ErrInvalidCreds
	}
	access, refresh, err := s.issue(u)
	if err != nil {
		return nil, "", "", err
	}
	return u, access, refresh, nil
}

// ChangePassword updates the user's password. Requires current password verification.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCreds
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return s.userRepo.Update(ctx, u)
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (access, refresh string, err error) {
	userID, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return "", "", err
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return s.issue(u)
}

func (s *AuthService) issue(u *models.User) (string, string, error) {
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		return "", "", err
	}
	refresh, err := auth.GenerateRefreshToken(&s.cfg.JWT, u.ID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
