package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"stcoins/config"
	"stcoins/internal/database"
	"stcoins/internal/domain"
	"stcoins/internal/models"
	"stcoins/internal/repository"
	"stcoins/pkg/verify"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newPooledTestDB(t, 1)
}

// newPooledTestDB lets transactions on different connections overlap.
func newPooledTestDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.NewDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxIdleConns: conns,
		MaxOpenConns: conns,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type recordedNotification struct {
	UserID uint
	Type   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (f *fakeNotifier) Notify(_ context.Context, userID uint, notifType, _, _ string, _ map[string]interface{}) error {
	f.mu.Lock()
	f.sent = append(f.sent, recordedNotification{UserID: userID, Type: notifType})
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) count(notifType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.Type == notifType {
			n++
		}
	}
	return n
}

// env bundles the services over one database.
type env struct {
	db          *gorm.DB
	users       *repository.UserRepository
	taskRepo    *repository.TaskRepository
	assignRepo  *repository.AssignmentRepository
	referRepo   *repository.ReferralRepository
	rewardRepo  *repository.RewardRepository
	settingRepo *repository.SettingRepository
	ledger      *LedgerService
	tasks       *TaskService
	referrals   *ReferralService
	redemptions *RedemptionService
	session     *SessionService
	notifier    *fakeNotifier
}

func newEnv(t *testing.T, oracle verify.Oracle) *env {
	t.Helper()
	return newEnvOn(t, newTestDB(t), oracle)
}

func newEnvOn(t *testing.T, db *gorm.DB, oracle verify.Oracle) *env {
	t.Helper()
	e := &env{
		db:          db,
		users:       repository.NewUserRepository(db),
		taskRepo:    repository.NewTaskRepository(db),
		assignRepo:  repository.NewAssignmentRepository(db),
		referRepo:   repository.NewReferralRepository(db),
		rewardRepo:  repository.NewRewardRepository(db),
		settingRepo: repository.NewSettingRepository(db),
		notifier:    &fakeNotifier{},
	}
	e.ledger = NewLedgerService(repository.NewLedgerRepository(db))
	e.tasks = NewTaskService(e.taskRepo, e.assignRepo, e.ledger, oracle, e.notifier, time.Second)
	e.referrals = NewReferralService(e.referRepo, e.users, e.settingRepo, e.ledger, e.notifier,
		config.LedgerConfig{ReferralBonus: 100})
	e.redemptions = NewRedemptionService(e.rewardRepo, e.ledger, e.notifier)
	e.session = NewSessionService(e.users, e.referrals, e.ledger)
	return e
}

func (e *env) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username: name,
		Email:    name + "@example.com",
		Role:     domain.RoleUser,
		Tier:     domain.TierFree,
		Status:   domain.StatusNormal,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *env) fund(t *testing.T, userID uint, points int64) {
	t.Helper()
	_, err := e.ledger.ApplyMutation(context.Background(), userID, points, fmt.Sprintf("seed:%d:%d", userID, time.Now().UnixNano()))
	require.NoError(t, err)
}

func (e *env) balance(t *testing.T, userID uint) int64 {
	t.Helper()
	b, _, err := e.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (e *env) task(t *testing.T, points int64, verification string, expiresIn time.Duration) *models.Task {
	t.Helper()
	task := &models.Task{
		Title:            fmt.Sprintf("task %d", points),
		Points:           points,
		ExpiresAt:        time.Now().Add(expiresIn),
		VerificationType: verification,
		Active:           true,
	}
	require.NoError(t, e.taskRepo.Create(context.Background(), task))
	return task
}

func (e *env) reward(t *testing.T, cost int64, quantity *int64) *models.Reward {
	t.Helper()
	r := &models.Reward{Name: fmt.Sprintf("reward %d", cost), PointsCost: cost, Quantity: quantity, Active: true}
	require.NoError(t, e.rewardRepo.Create(context.Background(), r))
	return r
}

func qty(n int64) *int64 { return &n }

func asUser(u *models.User) Actor { return Actor{UserID: u.ID, Role: domain.RoleUser} }

var admin = Actor{UserID: 999, Role: domain.RoleAdmin}
