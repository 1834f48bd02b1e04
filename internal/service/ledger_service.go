package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"stcoins/internal/domain"
	"stcoins/internal/models"
	"stcoins/internal/repository"

	"gorm.io/gorm"
)

// Idempotency keys used by the managers. Keys are unique across the whole ledger.
func TaskCompletionKey(assignmentID uint) string { return fmt.Sprintf("task:%d", assignmentID) }
func ReferralBonusKey(linkID uint) string { return fmt.Sprintf("referral:%d", linkID) }
func ReferralWelcomeKey(linkID uint) string { return fmt.Sprintf("referral:%d:welcome", linkID) }
func RedemptionKey(id string) string { return "redeem:" + id }
func RedemptionCancelKey(ledgerKey string) string { return ledgerKey + ":cancel" }

// Mutation is a single balance change identified by Key.
type Mutation struct {
	UserID    uint
	Delta     int64
	Key       string
	Type      string
	Reference string
}

type MutationResult struct {
	Entry    models.LedgerEntry
	Balance  int64
	Replayed bool
}

// TxHook runs inside the ledger transaction after the balance check and before the
// balance write. Returning an error rolls back the whole mutation.
type TxHook func(tx *gorm.DB) error

// LedgerService is the only writer of user balances.
type LedgerService struct {
	ledgerRepo *repository.LedgerRepository
	locks      *accountLocks
	now        func() time.Time

	mu        sync.RWMutex
	listeners []func(models.LedgerEntry)
}

func NewLedgerService(ledgerRepo *repository.LedgerRepository) *LedgerService {
	return &LedgerService{
		ledgerRepo: ledgerRepo,
		locks:      newAccountLocks(),
		now:        time.Now,
	}
}

// OnCommit registers a listener called after each committed, non-replayed mutation.
// Listeners run on their own goroutine and cannot affect the mutation.
func (s *LedgerService) OnCommit(fn func(models.LedgerEntry)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// ApplyMutation applies delta to the user's balance exactly once per key.
// A replayed key returns the originally recorded result together with ErrDuplicateMutation.
func (s *LedgerService) ApplyMutation(ctx context.Context, userID uint, delta int64, key string) (*MutationResult, error) {
	return s.Apply(ctx, Mutation{UserID: userID, Delta: delta, Key: key, Type: domain.LedgerAdminAdjustment}, nil)
}

// Apply is ApplyMutation with a typed entry and an optional hook committed in the same transaction.
func (s *LedgerService) Apply(ctx context.Context, m Mutation, hook TxHook) (*MutationResult, error) {
	if m.Key == "" {
		return nil, errors.New("ledger: idempotency key required")
	}
	if m.UserID == 0 {
		return nil, errors.New("ledger: user id required")
	}

	unlock := s.locks.Lock(m.UserID)
	defer unlock()

	var result MutationResult
	err := s.ledgerRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.ledgerRepo.WithTx(tx)
		u, err := repo.LockUser(ctx, m.UserID)
		if err != nil {
			return err
		}

		prior, err := repo.GetByKey(ctx, m.Key)
		if err == nil {
			if prior.UserID != m.UserID {
				return domain.ErrIdempotencyConflict
			}
			result = MutationResult{Entry: *prior, Balance: prior.BalanceAfter, Replayed: true}
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		next := u.Points + m.Delta
		if next < 0 {
			return fmt.Errorf("%w: balance %d, delta %d", domain.ErrInsufficientFunds, u.Points, m.Delta)
		}
		if hook != nil {
			if err := hook(tx); err != nil {
				return err
			}
		}
		if err := repo.SetBalance(ctx, m.UserID, next); err != nil {
			return fmt.Errorf("write balance: %w", err)
		}
		entry := models.LedgerEntry{
			IdempotencyKey: m.Key,
			UserID:         m.UserID,
			Delta:          m.Delta,
			BalanceAfter:   next,
			Type:           m.Type,
			Reference:      m.Reference,
			AppliedAt:      s.now(),
		}
		if err := repo.Append(ctx, &entry); err != nil {
			// Same key committed concurrently for another account.
			if repository.IsDuplicate(err) {
				return domain.ErrIdempotencyConflict
			}
			return fmt.Errorf("append ledger entry: %w", err)
		}
		result = MutationResult{Entry: entry, Balance: next}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Replayed {
		return &result, domain.ErrDuplicateMutation
	}
	log.Printf("[ledger] user=%d delta=%d balance=%d key=%s type=%s", m.UserID, m.Delta, result.Balance, m.Key, m.Type)
	s.publish(result.Entry)
	return &result, nil
}

// Balance reads the balance of record. asOf marks when it was read; any copy is stale after that.
func (s *LedgerService) Balance(ctx context.Context, userID uint) (balance int64, asOf time.Time, err error) {
	asOf = s.now()
	balance, err = s.ledgerRepo.Balance(ctx, userID)
	return balance, asOf, err
}

func (s *LedgerService) History(ctx context.Context, userID uint, limit, offset int) ([]models.LedgerEntry, int64, error) {
	return s.ledgerRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *LedgerService) publish(entry models.LedgerEntry) {
	s.mu.RLock()
	listeners := make([]func(models.LedgerEntry), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		go fn(entry)
	}
}

// accountLocks serializes mutations per account inside this process.
// The row lock taken in the transaction covers other processes.
type accountLocks struct {
	mu    sync.Mutex
	locks map[uint]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[uint]*accountLock)}
}

func (l *accountLocks) Lock(userID uint) (unlock func()) {
	l.mu.Lock()
	al := l.locks[userID]
	if al == nil {
		al = &accountLock{}
		l.locks[userID] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()
	return func() {
		al.mu.Unlock()
		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
