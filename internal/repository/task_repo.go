package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/models"
)

const taskColumns = `id, creator_id, title, description, reward_per_user, max_users, total_budget, coins_used, is_active, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.CreatorID, &t.Title, &t.Description, &t.RewardPerUser, &t.MaxUsers, &t.TotalBudget, &t.CoinsUsed, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, apperr.FromNoRows(err)
	}
	return &t, nil
}

func loadCompletions(ctx context.Context, q querier, t *models.Task) error {
	rows, err := q.Query(ctx, `SELECT user_id, completed_at FROM task_completions WHERE task_id = $1 ORDER BY completed_at`, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	t.CompletedBy = t.CompletedBy[:0]
	for rows.Next() {
		var c models.TaskCompletion
		if err := rows.Scan(&c.UserID, &c.CompletedAt); err != nil {
			return err
		}
		t.CompletedBy = append(t.CompletedBy, c)
	}
	return rows.Err()
}

// CreateTx inserts a task inside the transaction that funded it.
func (r *TaskRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, creator_id, title, description, reward_per_user, max_users, total_budget, coins_used, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, t.ID, t.CreatorID, t.Title, t.Description, t.RewardPerUser, t.MaxUsers, t.TotalBudget, t.CoinsUsed, t.IsActive).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadCompletions(ctx, r.pool, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetByIDForUpdate locks the task row, then loads its completions. Call within a transaction.
func (r *TaskRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := loadCompletions(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// AddCompletionTx records a paid participant and the new counters. Both
// statements share the caller's transaction so they commit as one unit.
func (r *TaskRepo) AddCompletionTx(ctx context.Context, tx pgx.Tx, taskID, userID uuid.UUID, at time.Time, coinsUsed int64, isActive bool) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO task_completions (task_id, user_id, completed_at) VALUES ($1, $2, $3)
	`, taskID, userID, at); err != nil {
		if apperr.IsUniqueViolation(err) {
			return apperr.ErrDuplicateSubmission
		}
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE tasks SET coins_used = $2, is_active = $3, updated_at = now() WHERE id = $1
	`, taskID, coinsUsed, isActive)
	return err
}

// UpdateBudgetTx writes the sizing fields and active flag.
func (r *TaskRepo) UpdateBudgetTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	_, err := tx.Exec(ctx, `
		UPDATE tasks SET reward_per_user = $2, max_users = $3, total_budget = $4, is_active = $5, updated_at = now()
		WHERE id = $1
	`, t.ID, t.RewardPerUser, t.MaxUsers, t.TotalBudget, t.IsActive)
	return err
}

func (r *TaskRepo) DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

// ListActive returns open tasks, newest first, without completions.
func (r *TaskRepo) ListActive(ctx context.Context) ([]*models.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE is_active ORDER BY created_at DESC`)
}

func (r *TaskRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE creator_id = $1 ORDER BY created_at DESC`, creatorID)
}

func (r *TaskRepo) list(ctx context.Context, sql string, args ...any) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
