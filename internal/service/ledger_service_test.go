package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"stcoins/internal/domain"
	"stcoins/internal/models"
	"stcoins/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestApplyMutationCreditsAndRecordsEntry(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	u := e.user(t, "alice")

	res, err := e.ledger.ApplyMutation(ctx, u.ID, 50, "k1")
	require.NoError(t, err)
	require.Equal(t, int64(50), res.Balance)
	require.Equal(t, int64(50), res.Entry.BalanceAfter)
	require.Equal(t, "k1", res.Entry.IdempotencyKey)
	require.Equal(t, int64(50), e.balance(t, u.ID))

	entries, total, err := e.ledger.History(ctx, u.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, entries, 1)

	repo := repository.NewLedgerRepository(e.db)
	got, err := repo.GetByKey(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, res.Entry.ID, got.ID)
	_, err = repo.GetByKey(ctx, "never-applied")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyMutationRejectsNegativeBalance(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	u := e.user(t, "bob")
	e.fund(t, u.ID, 30)

	_, err := e.ledger.ApplyMutation(ctx, u.ID, -31, "debit-1")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.Equal(t, int64(30), e.balance(t, u.ID))

	// The failed key was not recorded and can still be used.
	res, err := e.ledger.ApplyMutation(ctx, u.ID, -30, "debit-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), res.Balance)
}

func TestApplyMutationReplayReturnsOriginalResult(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	u := e.user(t, "carol")

	first, err := e.ledger.ApplyMutation(ctx, u.ID, 20, "once")
	require.NoError(t, err)

	again, err := e.ledger.ApplyMutation(ctx, u.ID, 20, "once")
	require.ErrorIs(t, err, domain.ErrDuplicateMutation)
	require.True(t, again.Replayed)
	require.Equal(t, first.Entry.ID, again.Entry.ID)
	require.Equal(t, int64(20), again.Balance)
	require.Equal(t, int64(20), e.balance(t, u.ID))
}

func TestApplyMutationKeyUsedByAnotherUser(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	a := e.user(t, "a")
	b := e.user(t, "b")

	_, err := e.ledger.ApplyMutation(ctx, a.ID, 10, "shared")
	require.NoError(t, err)
	_, err = e.ledger.ApplyMutation(ctx, b.ID, 10, "shared")
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)
	require.Equal(t, int64(0), e.balance(t, b.ID))
}

func TestApplyMutationValidatesInput(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	u := e.user(t, "dave")

	_, err := e.ledger.ApplyMutation(ctx, u.ID, 10, "")
	require.Error(t, err)
	_, err = e.ledger.ApplyMutation(ctx, 0, 10, "k")
	require.Error(t, err)
	_, err = e.ledger.ApplyMutation(ctx, 4242, 10, "k")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentMutationsAreLinearizable(t *testing.T) {
	e := newEnvOn(t, newPooledTestDB(t, 4), nil)
	ctx := context.Background()
	u := e.user(t, "erin")
	e.fund(t, u.ID, 100)

	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.ledger.ApplyMutation(ctx, u.ID, -10, fmt.Sprintf("spend-%d", i))
		}(i)
	}
	wg.Wait()

	ok, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			insufficient++
		}
	}
	require.Equal(t, 10, ok)
	require.Equal(t, 10, insufficient)
	require.Equal(t, int64(0), e.balance(t, u.ID))

	entries, _, err := e.ledger.History(ctx, u.ID, 100, 0)
	require.NoError(t, err)
	var sum int64
	for _, en := range entries {
		sum += en.Delta
		require.GreaterOrEqual(t, en.BalanceAfter, int64(0))
	}
	require.Equal(t, int64(0), sum)
}

func TestHookErrorRollsBackMutation(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	u := e.user(t, "frank")

	_, err := e.ledger.Apply(ctx, Mutation{UserID: u.ID, Delta: 40, Key: "hooked", Type: domain.LedgerAdminAdjustment},
		func(tx *gorm.DB) error { return domain.ErrInvalidState })
	require.ErrorIs(t, err, domain.ErrInvalidState)
	require.Equal(t, int64(0), e.balance(t, u.ID))

	_, err = e.ledger.Apply(ctx, Mutation{UserID: u.ID, Delta: 40, Key: "hooked", Type: domain.LedgerAdminAdjustment}, nil)
	require.NoError(t, err)
}

func TestOnCommitSkipsReplays(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	u := e.user(t, "gina")

	got := make(chan models.LedgerEntry, 4)
	e.ledger.OnCommit(func(en models.LedgerEntry) { got <- en })

	_, err := e.ledger.ApplyMutation(ctx, u.ID, 5, "notify-once")
	require.NoError(t, err)
	_, err = e.ledger.ApplyMutation(ctx, u.ID, 5, "notify-once")
	require.ErrorIs(t, err, domain.ErrDuplicateMutation)

	select {
	case en := <-got:
		require.Equal(t, "notify-once", en.IdempotencyKey)
	case <-time.After(time.Second):
		t.Fatal("listener not called")
	}
	select {
	case en := <-got:
		t.Fatalf("unexpected second event %+v", en)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApplySerializesPerAccountOnly(t *testing.T) {
	e := newEnvOn(t, newPooledTestDB(t, 4), nil)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	holding := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		_, err := e.ledger.Apply(ctx, Mutation{UserID: alice.ID, Delta: 10, Key: "first", Type: domain.LedgerAdminAdjustment},
			func(tx *gorm.DB) error {
				close(holding)
				<-release
				return nil
			})
		firstDone <- err
	}()
	<-holding

	secondEntered := make(chan struct{})
	secondDone := make(chan error, 1)
	go func() {
		_, err := e.ledger.Apply(ctx, Mutation{UserID: alice.ID, Delta: 5, Key: "second", Type: domain.LedgerAdminAdjustment},
			func(tx *gorm.DB) error {
				close(secondEntered)
				return nil
			})
		secondDone <- err
	}()

	// Another account is not held up; its hook aborts so nothing is written.
	errAbort := errors.New("abort")
	otherDone := make(chan error, 1)
	go func() {
		_, err := e.ledger.Apply(ctx, Mutation{UserID: bob.ID, Delta: 5, Key: "other", Type: domain.LedgerAdminAdjustment},
			func(tx *gorm.DB) error { return errAbort })
		otherDone <- err
	}()
	select {
	case err := <-otherDone:
		require.ErrorIs(t, err, errAbort)
	case <-time.After(2 * time.Second):
		t.Fatal("mutation for another account blocked")
	}

	select {
	case <-secondEntered:
		t.Fatal("second mutation for the same account ran while the first was open")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
	require.Equal(t, int64(15), e.balance(t, alice.ID))
	require.Equal(t, int64(0), e.balance(t, bob.ID))

	entries, _, err := e.ledger.History(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(10), entries[len(entries)-1].BalanceAfter)
}
