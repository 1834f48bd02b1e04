package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"stcoins/internal/domain"
	"stcoins/internal/models"
	"stcoins/internal/repository"
	"stcoins/pkg/verify"

	"gorm.io/gorm"
)

// TaskCatalog is the read side of the task catalog.
type TaskCatalog interface {
	GetTask(ctx context.Context, id uint) (*models.Task, error)
	ListAvailable(ctx context.Context, now time.Time, categoryID *uint) ([]models.Task, error)
	ListCategories(ctx context.Context) ([]models.TaskCategory, error)
}

type Evidence struct {
	ScreenshotURL string
	Notes         string
}

type SubmitResult struct {
	Assignment   *models.UserTask       `json:"assignment"`
	Submission   *models.TaskSubmission `json:"submission"`
	Verification string                 `json:"verification"`
	Details      string                 `json:"details,omitempty"`
}

// TaskService drives assignments through their lifecycle and requests the completion credit.
type TaskService struct {
	catalog       TaskCatalog
	assignRepo    *repository.AssignmentRepository
	ledger        *LedgerService
	oracle        verify.Oracle
	notifier      Notifier
	verifyTimeout time.Duration
	now           func() time.Time
}

func NewTaskService(
	catalog TaskCatalog,
	assignRepo *repository.AssignmentRepository,
	ledger *LedgerService,
	oracle verify.Oracle,
	notifier Notifier,
	verifyTimeout time.Duration,
) *TaskService {
	if verifyTimeout <= 0 {
		verifyTimeout = 5 * time.Second
	}
	return &TaskService{
		catalog:       catalog,
		assignRepo:    assignRepo,
		ledger:        ledger,
		oracle:        oracle,
		notifier:      notifier,
		verifyTimeout: verifyTimeout,
		now:           time.Now,
	}
}

func (s *TaskService) ListTasks(ctx context.Context, categoryID *uint) ([]models.Task, error) {
	return s.catalog.ListAvailable(ctx, s.now(), categoryID)
}

func (s *TaskService) ListCategories(ctx context.Context) ([]models.TaskCategory, error) {
	return s.catalog.ListCategories(ctx)
}

func (s *TaskService) ListMyAssignments(ctx context.Context, actor Actor, status string) ([]models.UserTask, error) {
	return s.assignRepo.ListByUser(ctx, actor.UserID, status)
}

// StartTask creates the caller's live assignment for a task.
func (s *TaskService) StartTask(ctx context.Context, actor Actor, taskID uint) (*models.UserTask, error) {
	task, err := s.catalog.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Active {
		return nil, domain.ErrNotActive
	}
	if _, err := s.assignRepo.GetLive(ctx, actor.UserID, taskID); err == nil {
		return nil, domain.ErrAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if task.Expired(s.now()) {
		return nil, domain.ErrExpired
	}

	slot := models.ActiveSlotFor(actor.UserID, taskID)
	ut := &models.UserTask{
		UserID:     actor.UserID,
		TaskID:     taskID,
		Status:     domain.TaskStateInProgress,
		ActiveSlot: &slot,
	}
	if err := s.assignRepo.Create(ctx, ut); err != nil {
		if repository.IsDuplicate(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	ut.Task = task
	log.Printf("[task] user=%d started task=%d assignment=%d", actor.UserID, taskID, ut.ID)
	return ut, nil
}

// SubmitTask records a submission for an in-progress assignment. Automatic tasks are
// checked against the oracle right away; any oracle failure leaves the submission for review.
func (s *TaskService) SubmitTask(ctx context.Context, actor Actor, assignmentID uint, ev Evidence) (*SubmitResult, error) {
	ut, err := s.ownAssignment(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}
	if ut.Status != domain.TaskStateInProgress {
		return nil, domain.ErrInvalidState
	}
	task := ut.Task
	if task.Expired(s.now()) {
		return nil, domain.ErrExpired
	}
	ev.ScreenshotURL = strings.TrimSpace(ev.ScreenshotURL)
	if task.VerificationType == domain.VerificationMediaRequired && ev.ScreenshotURL == "" {
		return nil, domain.ErrEvidenceRequired
	}

	sub := &models.TaskSubmission{
		UserTaskID:      ut.ID,
		ScreenshotURL:   ev.ScreenshotURL,
		SubmissionNotes: strings.TrimSpace(ev.Notes),
		SubmittedAt:     s.now(),
	}
	err = s.assignRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.assignRepo.WithTx(tx)
		if err := repo.CreateSubmission(ctx, sub); err != nil {
			return err
		}
		ok, err := repo.MarkSubmitted(ctx, ut.ID, sub.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ut.Status = domain.TaskStateSubmitted
	ut.SubmissionID = &sub.ID
	log.Printf("[task] assignment=%d submitted submission=%d", ut.ID, sub.ID)

	res := &SubmitResult{Assignment: ut, Submission: sub, Verification: domain.VerifyOutcomeManual}
	if task.VerificationType != domain.VerificationAutomatic {
		return res, nil
	}
	res.Verification, res.Details = s.autoVerify(ctx, ut, sub, task)
	if res.Verification == domain.VerifyOutcomeApproved || res.Verification == domain.VerifyOutcomeCreditPending {
		if fresh, err := s.assignRepo.GetByID(ctx, ut.ID); err == nil {
			res.Assignment = fresh
		}
		if fresh, err := s.assignRepo.GetSubmission(ctx, sub.ID); err == nil {
			res.Submission = fresh
		}
	}
	return res, nil
}

func (s *TaskService) autoVerify(ctx context.Context, ut *models.UserTask, sub *models.TaskSubmission, task *models.Task) (string, string) {
	if s.oracle == nil {
		log.Printf("[verify] assignment=%d: no oracle configured", ut.ID)
		return domain.VerifyOutcomeUnavailable, domain.ErrVerificationUnavailable.Error()
	}
	vctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()
	result, err := s.oracle.Verify(vctx, verify.Request{
		UserID:   ut.UserID,
		TaskID:   task.ID,
		Provider: task.VerificationProvider,
		Target:   task.VerificationTarget,
		Evidence: sub.ScreenshotURL,
	})
	if err != nil {
		log.Printf("[verify] assignment=%d: %v", ut.ID, fmt.Errorf("%w: %v", domain.ErrVerificationUnavailable, err))
		return domain.VerifyOutcomeUnavailable, domain.ErrVerificationUnavailable.Error()
	}
	if !result.Approved {
		log.Printf("[verify] assignment=%d not approved: %s", ut.ID, result.Details)
		return domain.VerifyOutcomeNotApproved, result.Details
	}
	reviewed, err := s.review(ctx, sub, domain.ReviewApprove, domain.ReviewerSystem, nil)
	if err != nil {
		log.Printf("[verify] assignment=%d approve: %v", ut.ID, err)
		// Review not committed; the submission stays for an admin.
		if reviewed == nil {
			return domain.VerifyOutcomeManual, result.Details
		}
		return domain.VerifyOutcomeCreditPending, err.Error()
	}
	return domain.VerifyOutcomeApproved, result.Details
}

// ReviewSubmission applies an admin decision once. A second review of the same
// submission fails with ErrInvalidState and never reaches the ledger.
func (s *TaskService) ReviewSubmission(ctx context.Context, actor Actor, submissionID uint, decision, notes string) (*models.UserTask, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if decision != domain.ReviewApprove && decision != domain.ReviewReject {
		return nil, domain.ErrInvalidDecision
	}
	sub, err := s.assignRepo.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.ReviewedAt != nil {
		return nil, domain.ErrInvalidState
	}
	var notesPtr *string
	if n := strings.TrimSpace(notes); n != "" {
		notesPtr = &n
	}
	return s.review(ctx, sub, decision, strconv.FormatUint(uint64(actor.UserID), 10), notesPtr)
}

func (s *TaskService) review(ctx context.Context, sub *models.TaskSubmission, decision, reviewer string, notes *string) (*models.UserTask, error) {
	to := domain.TaskStateRejected
	if decision == domain.ReviewApprove {
		to = domain.TaskStateApproved
	}
	err := s.assignRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.assignRepo.WithTx(tx)
		ok, err := repo.MarkReviewed(ctx, sub.ID, reviewer, notes, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidState
		}
		ok, err = repo.Transition(ctx, sub.UserTaskID, domain.TaskStateSubmitted, to)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[task] submission=%d %s by %s", sub.ID, decision, reviewer)

	if decision == domain.ReviewApprove {
		if err := s.CreditTaskCompletion(ctx, sub.UserTaskID); err != nil {
			ut, _ := s.assignRepo.GetByID(ctx, sub.UserTaskID)
			return ut, fmt.Errorf("credit task completion: %w", err)
		}
	}
	ut, err := s.assignRepo.GetByID(ctx, sub.UserTaskID)
	if err != nil {
		return nil, err
	}
	if decision == domain.ReviewReject {
		msg := "Your submission for \"" + ut.Task.Title + "\" was not approved."
		if notes != nil {
			msg += " " + *notes
		}
		notify(ctx, s.notifier, ut.UserID, domain.NotifSubmissionRejected, "Submission rejected", msg,
			map[string]interface{}{"assignment_id": ut.ID, "submission_id": sub.ID})
	}
	return ut, nil
}

// CreditTaskCompletion credits an approved assignment exactly once. It is safe to
// repeat: an already completed assignment or a replayed ledger key is a no-op.
func (s *TaskService) CreditTaskCompletion(ctx context.Context, assignmentID uint) error {
	ut, err := s.assignRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return err
	}
	switch ut.Status {
	case domain.TaskStateCompleted:
		return nil
	case domain.TaskStateApproved:
	default:
		return domain.ErrInvalidState
	}
	if ut.Task == nil {
		return domain.ErrNotFound
	}
	points := ut.Task.Points
	completedAt := s.now()

	res, err := s.ledger.Apply(ctx, Mutation{
		UserID:    ut.UserID,
		Delta:     points,
		Key:       TaskCompletionKey(ut.ID),
		Type:      domain.LedgerTaskCompletion,
		Reference: fmt.Sprintf("user_task:%d", ut.ID),
	}, func(tx *gorm.DB) error {
		ok, err := s.assignRepo.WithTx(tx).MarkCompleted(ctx, ut.ID, points, completedAt)
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
	notify(ctx, s.notifier, ut.UserID, domain.NotifTaskCompleted, "Task completed",
		fmt.Sprintf("You earned %d points for \"%s\".", points, ut.Task.Title),
		map[string]interface{}{"assignment_id": ut.ID, "points": points, "balance": res.Balance})
	return nil
}

// ReopenTask lets the owner retry a rejected assignment when the task allows resubmission.
func (s *TaskService) ReopenTask(ctx context.Context, actor Actor, assignmentID uint) (*models.UserTask, error) {
	ut, err := s.ownAssignment(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}
	if ut.Status != domain.TaskStateRejected || !ut.Task.AllowResubmission {
		return nil, domain.ErrInvalidState
	}
	if ut.Task.Expired(s.now()) {
		return nil, domain.ErrExpired
	}
	ok, err := s.assignRepo.Transition(ctx, ut.ID, domain.TaskStateRejected, domain.TaskStateInProgress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidState
	}
	ut.Status = domain.TaskStateInProgress
	return ut, nil
}

// ExpireStale is the expiry sweep hook. It never touches balances.
func (s *TaskService) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.assignRepo.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[task] expired %d assignments", n)
	}
	return n, nil
}

// RecoverApproved re-drives the credit for assignments left in approved.
func (s *TaskService) RecoverApproved(ctx context.Context) (int, error) {
	list, err := s.assignRepo.ListByStatus(ctx, domain.TaskStateApproved, 100)
	if err != nil {
		return 0, err
	}
	credited := 0
	for _, ut := range list {
		if err := s.CreditTaskCompletion(ctx, ut.ID); err != nil {
			log.Printf("[task] recover assignment=%d: %v", ut.ID, err)
			continue
		}
		credited++
	}
	return credited, nil
}

// RetryCredit is the admin entry point for a stuck approved assignment.
func (s *TaskService) RetryCredit(ctx context.Context, actor Actor, assignmentID uint) (*models.UserTask, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := s.CreditTaskCompletion(ctx, assignmentID); err != nil {
		return nil, err
	}
	return s.assignRepo.GetByID(ctx, assignmentID)
}

func (s *TaskService) ListPendingSubmissions(ctx context.Context, actor Actor, limit, offset int) ([]models.TaskSubmission, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.assignRepo.ListPendingSubmissions(ctx, limit, offset)
}

// ownAssignment hides other users' assignments behind ErrNotFound.
func (s *TaskService) ownAssignment(ctx context.Context, actor Actor, id uint) (*models.UserTask, error) {
	ut, err := s.assignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ut.UserID != actor.UserID || ut.Task == nil {
		return nil, domain.ErrNotFound
	}
	return ut, nil
}
