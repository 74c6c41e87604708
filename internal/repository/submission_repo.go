package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/models"
)

const submissionColumns = `id, task_id, user_id, proof_ref, status, rejection_reason, reviewer_id, reviewed_at, created_at`

type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func scanSubmission(row pgx.Row) (*models.TaskSubmission, error) {
	var s models.TaskSubmission
	err := row.Scan(&s.ID, &s.TaskID, &s.UserID, &s.ProofRef, &s.Status, &s.RejectionReason, &s.ReviewerID, &s.ReviewedAt, &s.CreatedAt)
	if err != nil {
		return nil, apperr.FromNoRows(err)
	}
	return &s, nil
}

// Create inserts a pending submission. The (task_id, user_id) unique key
// turns a second submission into apperr.ErrDuplicateSubmission.
func (r *SubmissionRepo) Create(ctx context.Context, s *models.TaskSubmission) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO task_submissions (id, task_id, user_id, proof_ref, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, s.ID, s.TaskID, s.UserID, s.ProofRef, s.Status).Scan(&s.CreatedAt)
	if apperr.IsUniqueViolation(err) {
		return apperr.ErrDuplicateSubmission
	}
	return err
}

func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TaskSubmission, error) {
	return scanSubmission(r.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM task_submissions WHERE id = $1`, id))
}

// GetByIDForUpdate locks the submission row. Call within a transaction.
func (r *SubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.TaskSubmission, error) {
	return scanSubmission(tx.QueryRow(ctx, `SELECT `+submissionColumns+` FROM task_submissions WHERE id = $1 FOR UPDATE`, id))
}

func (r *SubmissionRepo) UpdateReviewTx(ctx context.Context, tx pgx.Tx, s *models.TaskSubmission) error {
	_, err := tx.Exec(ctx, `
		UPDATE task_submissions SET status = $2, rejection_reason = $3, reviewer_id = $4, reviewed_at = $5
		WHERE id = $1
	`, s.ID, s.Status, s.RejectionReason, s.ReviewerID, s.ReviewedAt)
	return err
}

func (r *SubmissionRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.TaskSubmission, error) {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM task_submissions WHERE task_id = $1 ORDER BY created_at`, taskID)
}

func (r *SubmissionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.TaskSubmission, error) {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM task_submissions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *SubmissionRepo) list(ctx context.Context, sql string, args ...any) ([]*models.TaskSubmission, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TaskSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
