package service

import (
	"context"
	"testing"

	"stcoins/internal/domain"
	"stcoins/internal/models"

	"github.com/stretchr/testify/require"
)

func seedCode(t *testing.T, e *env, owner *models.User, code string) {
	t.Helper()
	require.NoError(t, e.referRepo.Create(context.Background(), &models.Referral{ReferrerID: owner.ID, ReferralCode: code}))
}

func TestApplyReferralCodeCreditsReferrerOnce(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	referrer := e.user(t, "referrer")
	newcomer := e.user(t, "newcomer")
	seedCode(t, e, referrer, "ABC123")

	link, err := e.referrals.ApplyReferralCode(ctx, newcomer.ID, " abc123 ")
	require.NoError(t, err)
	require.Equal(t, referrer.ID, link.ReferrerID)
	require.True(t, link.PointsAwarded)
	require.Equal(t, int64(100), e.balance(t, referrer.ID))
	require.Equal(t, int64(0), e.balance(t, newcomer.ID))
	require.Equal(t, 1, e.notifier.count(domain.NotifReferralCredited))

	_, err = e.referrals.ApplyReferralCode(ctx, newcomer.ID, "ABC123")
	require.ErrorIs(t, err, domain.ErrAlreadyLinked)
	require.Equal(t, int64(100), e.balance(t, referrer.ID))

	require.NoError(t, e.referrals.CreditReferralBonus(ctx, link.ID))
	require.Equal(t, int64(100), e.balance(t, referrer.ID))

	mine, err := e.referrals.MyReferrals(ctx, referrer.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestApplyReferralCodeRejectsBadInput(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner")
	seedCode(t, e, owner, "SELF01")

	_, err := e.referrals.ApplyReferralCode(ctx, owner.ID, "SELF01")
	require.ErrorIs(t, err, domain.ErrSelfReferral)
	_, err = e.referRepo.GetLinkByReferredUser(ctx, owner.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.referrals.ApplyReferralCode(ctx, owner.ID, "NOPE99")
	require.ErrorIs(t, err, domain.ErrInvalidCode)

	_, err = e.referrals.ApplyReferralCode(ctx, owner.ID, "   ")
	require.ErrorIs(t, err, domain.ErrInvalidCode)
	require.Equal(t, int64(0), e.balance(t, owner.ID))
}

func TestReferralWelcomeBonusFromSettings(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	referrer := e.user(t, "host")
	newcomer := e.user(t, "guest")
	seedCode(t, e, referrer, "WELCOME1")
	require.NoError(t, e.settingRepo.Set(ctx, domain.SettingReferredWelcomeBonus, "25"))
	require.NoError(t, e.settingRepo.Set(ctx, domain.SettingReferralBonus, "60"))

	_, err := e.referrals.ApplyReferralCode(ctx, newcomer.ID, "WELCOME1")
	require.NoError(t, err)
	require.Equal(t, int64(60), e.balance(t, referrer.ID))
	require.Equal(t, int64(25), e.balance(t, newcomer.ID))
}

func TestMyCodeIsStable(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	u := e.user(t, "sharer")

	first, err := e.referrals.MyCode(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, first.ReferralCode, 8)
	again, err := e.referrals.MyCode(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, first.ReferralCode, again.ReferralCode)
}

func TestRecoverUnawardedCreditsOrphanLink(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	referrer := e.user(t, "patient")
	newcomer := e.user(t, "joined")

	// A link committed before the credit ran.
	link := &models.ReferredUser{ReferredUserID: newcomer.ID, ReferrerID: referrer.ID, ReferralCode: "ORPHAN1"}
	require.NoError(t, e.referRepo.CreateLink(ctx, link))

	n, err := e.referrals.RecoverUnawarded(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, int64(100), e.balance(t, referrer.ID))

	n, err = e.referrals.RecoverUnawarded(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, int64(100), e.balance(t, referrer.ID))
}

func TestAfterSignInAppliesPendingCode(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	referrer := e.user(t, "inviter")
	newcomer := e.user(t, "invited")
	seedCode(t, e, referrer, "PEND1234")
	require.NoError(t, e.referrals.CapturePending(ctx, newcomer.ID, "pend1234"))

	state, err := e.session.AfterSignIn(ctx, newcomer.ID)
	require.NoError(t, err)
	require.Len(t, state.Steps, 3)
	for _, s := range state.Steps {
		require.True(t, s.OK, s.Name)
	}
	require.NotNil(t, state.Referral)
	require.Equal(t, referrer.ID, state.Referral.ReferrerID)
	require.Nil(t, state.User.PendingReferralCode)
	require.Equal(t, int64(100), e.balance(t, referrer.ID))

	// Signing in again changes nothing.
	_, err = e.session.AfterSignIn(ctx, newcomer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), e.balance(t, referrer.ID))
}

func TestAfterSignInReportsBadPendingCode(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	u := e.user(t, "typo")
	require.NoError(t, e.referrals.CapturePending(ctx, u.ID, "MISSING"))

	state, err := e.session.AfterSignIn(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, StepApplyReferral, state.Steps[1].Name)
	require.False(t, state.Steps[1].OK)
	require.Equal(t, domain.ErrInvalidCode.Error(), state.Steps[1].Error)
	require.True(t, state.Steps[2].OK)
	require.Nil(t, state.User.PendingReferralCode)
}

func TestAfterSignInUnknownUser(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.session.AfterSignIn(context.Background(), 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
