package service

import (
	"context"
	"errors"
	"log"
	"time"

	"stcoins/internal/domain"
	"stcoins/internal/models"
	"stcoins/internal/repository"
	"stcoins/pkg/verify"

	"golang.org/x/oauth2"
)

// SpotifyService links Spotify accounts and stores their tokens. It is the
// token store behind the Spotify verification oracle.
type SpotifyService struct {
	repo   *repository.ConnectedServiceRepository
	client *verify.Spotify
}

func NewSpotifyService(repo *repository.ConnectedServiceRepository) *SpotifyService {
	return &SpotifyService{repo: repo}
}

// SetClient attaches the API client; the client itself needs this service as its token store.
func (s *SpotifyService) SetClient(client *verify.Spotify) {
	s.client = client
}

func (s *SpotifyService) ConnectURL(state string) string {
	return s.client.AuthCodeURL(state)
}

// Connect exchanges an authorization code and stores the linked account.
func (s *SpotifyService) Connect(ctx context.Context, userID uint, code string) (*models.ConnectedService, error) {
	tok, err := s.client.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	profile, tok, err := s.client.Profile(ctx, tok)
	if err != nil {
		return nil, err
	}
	cs := connectionFrom(userID, profile, tok)
	if err := s.repo.Upsert(ctx, cs); err != nil {
		return nil, err
	}
	log.Printf("[spotify] user=%d connected account=%s product=%s", userID, profile.ID, profile.Product)
	return s.repo.Get(ctx, userID, domain.ServiceSpotify)
}

// Refresh re-reads the linked profile (product, premium flag).
func (s *SpotifyService) Refresh(ctx context.Context, userID uint) (*models.ConnectedService, error) {
	tok, err := s.Token(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, tok, err := s.client.Profile(ctx, tok)
	if err != nil {
		return nil, err
	}
	cs := connectionFrom(userID, profile, tok)
	if err := s.repo.Upsert(ctx, cs); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID, domain.ServiceSpotify)
}

func (s *SpotifyService) Get(ctx context.Context, userID uint) (*models.ConnectedService, error) {
	return s.repo.Get(ctx, userID, domain.ServiceSpotify)
}

func (s *SpotifyService) Token(ctx context.Context, userID uint) (*oauth2.Token, error) {
	cs, err := s.repo.Get(ctx, userID, domain.ServiceSpotify)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, verify.ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{
		AccessToken:  cs.AccessToken,
		RefreshToken: cs.RefreshToken,
		TokenType:    "Bearer",
	}
	if cs.ExpiresAt != nil {
		tok.Expiry = *cs.ExpiresAt
	}
	return tok, nil
}

func (s *SpotifyService) SaveToken(ctx context.Context, userID uint, tok *oauth2.Token) error {
	cs, err := s.repo.Get(ctx, userID, domain.ServiceSpotify)
	if err != nil {
		return err
	}
	cs.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cs.RefreshToken = tok.RefreshToken
	}
	cs.ExpiresAt = expiry(tok)
	return s.repo.Update(ctx, cs)
}

func connectionFrom(userID uint, p *verify.SpotifyProfile, tok *oauth2.Token) *models.ConnectedService {
	return &models.ConnectedService{
		UserID:        userID,
		ServiceName:   domain.ServiceSpotify,
		ServiceUserID: p.ID,
		DisplayName:   p.DisplayName,
		Email:         p.Email,
		Product:       p.Product,
		IsPremium:     p.IsPremium(),
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		ExpiresAt:     expiry(tok),
	}
}

func expiry(tok *oauth2.Token) *time.Time {
	if tok.Expiry.IsZero() {
		return nil
	}
	t := tok.Expiry
	return &t
}
