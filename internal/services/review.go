package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/database"
	"github.com/coinquest/backend/internal/ledger"
	"github.com/coinquest/backend/internal/metrics"
	"github.com/coinquest/backend/internal/models"
)

// Reviewer scopes.
const (
	ScopeAdmin   = "admin"
	ScopeCreator = "creator"
)

// Reviewer is the caller deciding a submission. A creator-scoped reviewer
// may only decide submissions to their own tasks.
type Reviewer struct {
	AccountID uuid.UUID
	Scope     string
}

// SubmissionStore is the submission repository surface the review flow needs.
type SubmissionStore interface {
	Create(ctx context.Context, s *models.TaskSubmission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TaskSubmission, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.TaskSubmission, error)
	UpdateReviewTx(ctx context.Context, tx pgx.Tx, s *models.TaskSubmission) error
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.TaskSubmission, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.TaskSubmission, error)
}

// ReviewService moves submissions through pending, approved and rejected.
// Approval pays the task reward exactly once.
type ReviewService struct {
	db          database.TxBeginner
	submissions SubmissionStore
	tasks       TaskStore
	budget      *BudgetManager
	ledger      *ledger.Ledger
	clock       clockwork.Clock
	log         *slog.Logger
}

func NewReviewService(db database.TxBeginner, submissions SubmissionStore, tasks TaskStore, budget *BudgetManager, l *ledger.Ledger, clock clockwork.Clock, log *slog.Logger) *ReviewService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReviewService{db: db, submissions: submissions, tasks: tasks, budget: budget, ledger: l, clock: clock, log: log}
}

// Submit records a pending submission. There is at most one per (task, user).
func (s *ReviewService) Submit(ctx context.Context, taskID, userID uuid.UUID, proofRef string) (*models.TaskSubmission, error) {
	if proofRef == "" {
		return nil, fmt.Errorf("proof_ref is required: %w", apperr.ErrValidation)
	}
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.CreatorID == userID {
		return nil, apperr.ErrUnauthorized
	}
	if !t.IsActive {
		return nil, apperr.ErrTaskInactive
	}
	sub := &models.TaskSubmission{
		ID:       uuid.New(),
		TaskID:   taskID,
		UserID:   userID,
		ProofRef: proofRef,
		Status:   models.SubmissionPending,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Approve pays the task reward to the submitter and marks the submission
// approved. Locks are taken submission, task, account. A second approval
// fails with apperr.ErrAlreadyApproved and pays nothing.
func (s *ReviewService) Approve(ctx context.Context, submissionID uuid.UUID, reviewer Reviewer) (*models.TaskSubmission, error) {
	var sub *models.TaskSubmission
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var t *models.Task
		var err error
		sub, t, err = s.lockForReview(ctx, tx, submissionID, reviewer)
		if err != nil {
			return err
		}
		if sub.Status == models.SubmissionApproved {
			return apperr.ErrAlreadyApproved
		}

		if _, err := s.budget.Consume(ctx, tx, t.ID, sub.UserID, t.RewardPerUser); err != nil {
			return err
		}
		key := "submission:" + sub.ID.String()
		_, err = s.ledger.Credit(ctx, tx, sub.UserID, t.RewardPerUser, models.TxKindEarned,
			"reward for task "+t.Title, models.TxRefs{TaskID: &t.ID, IdempotencyKey: &key})
		if err != nil {
			return err
		}

		now := s.clock.Now()
		sub.Status = models.SubmissionApproved
		sub.RejectionReason = nil
		sub.ReviewerID = &reviewer.AccountID
		sub.ReviewedAt = &now
		return s.submissions.UpdateReviewTx(ctx, tx, sub)
	})
	s.record("approve", err)
	if err != nil {
		return nil, err
	}
	s.log.Info("submission approved", "submission_id", submissionID, "user_id", sub.UserID, "reviewer_id", reviewer.AccountID)
	return sub, nil
}

// Reject marks a submission rejected with reason. Approved submissions
// cannot be rejected; rejecting a rejected submission updates the reason.
func (s *ReviewService) Reject(ctx context.Context, submissionID uuid.UUID, reviewer Reviewer, reason string) (*models.TaskSubmission, error) {
	var sub *models.TaskSubmission
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		sub, _, err = s.lockForReview(ctx, tx, submissionID, reviewer)
		if err != nil {
			return err
		}
		if sub.Status == models.SubmissionApproved {
			return apperr.ErrAlreadyApproved
		}
		now := s.clock.Now()
		sub.Status = models.SubmissionRejected
		sub.RejectionReason = &reason
		sub.ReviewerID = &reviewer.AccountID
		sub.ReviewedAt = &now
		return s.submissions.UpdateReviewTx(ctx, tx, sub)
	})
	s.record("reject", err)
	if err != nil {
		return nil, err
	}
	s.log.Info("submission rejected", "submission_id", submissionID, "reviewer_id", reviewer.AccountID)
	return sub, nil
}

func (s *ReviewService) lockForReview(ctx context.Context, tx pgx.Tx, submissionID uuid.UUID, reviewer Reviewer) (*models.TaskSubmission, *models.Task, error) {
	sub, err := s.submissions.GetByIDForUpdate(ctx, tx, submissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock submission %s: %w", submissionID, err)
	}
	t, err := s.tasks.GetByIDForUpdate(ctx, tx, sub.TaskID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock task %s: %w", sub.TaskID, err)
	}
	if err := authorize(reviewer, t); err != nil {
		return nil, nil, err
	}
	return sub, t, nil
}

func authorize(r Reviewer, t *models.Task) error {
	switch r.Scope {
	case ScopeAdmin:
		return nil
	case ScopeCreator:
		if t.CreatorID == r.AccountID {
			return nil
		}
	}
	return apperr.ErrUnauthorized
}

func (s *ReviewService) record(decision string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrAlreadyApproved):
		outcome = "already_approved"
	case apperr.IsBusiness(err):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	metrics.SubmissionReviews.WithLabelValues(decision, outcome).Inc()
}

// ListForTask returns a task's submissions to its creator or an admin.
func (s *ReviewService) ListForTask(ctx context.Context, taskID uuid.UUID, reviewer Reviewer) ([]*models.TaskSubmission, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := authorize(reviewer, t); err != nil {
		return nil, err
	}
	return s.submissions.ListByTask(ctx, taskID)
}

// ListForUser returns the caller's own submissions.
func (s *ReviewService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.TaskSubmission, error) {
	return s.submissions.ListByUser(ctx, userID)
}
