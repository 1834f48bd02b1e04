package auth

import (
	"testing"
	"time"

	"stcoins/config"

	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "test",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 42, "a@example.com", "admin")
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, tok)
	require.NoError(t, err)
	require.Equal(t, uint(42), claims.UserID)
	require.Equal(t, "admin", claims.Role)

	other := testJWTConfig()
	other.AccessSecret = "different"
	_, err = ParseAccessToken(other, tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessExpiry = -time.Minute
	tok, err := GenerateAccessToken(cfg, 1, "a@example.com", "user")
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	refresh, err := GenerateRefreshToken(cfg, 5)
	require.NoError(t, err)

	id, err := ParseRefreshToken(cfg, refresh)
	require.NoError(t, err)
	require.Equal(t, uint(5), id)

	_, err = ParseAccessToken(cfg, refresh)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestStateTokenBoundToAudience(t *testing.T) {
	cfg := testJWTConfig()
	state, err := GenerateStateToken(cfg, 77, time.Minute)
	require.NoError(t, err)

	id, err := ParseStateToken(cfg, state)
	require.NoError(t, err)
	require.Equal(t, uint(77), id)

	// A state token carries no user_id claim, so it cannot authenticate API calls.
	_, err = ParseAccessToken(cfg, state)
	require.ErrorIs(t, err, ErrInvalidToken)

	access, err := GenerateAccessToken(cfg, 77, "x@example.com", "user")
	require.NoError(t, err)
	_, err = ParseStateToken(cfg, access)
	require.ErrorIs(t, err, ErrInvalidToken)
}
