package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/models"
)

type Tasks struct {
	s *Store
}

func (r *Tasks) CreateTx(_ context.Context, _ pgx.Tx, t *models.Task) error {
	r.s.record("insert task")
	r.s.locked(func(d *data) {
		now := r.s.now()
		t.CreatedAt, t.UpdatedAt = now, now
		d.tasks[t.ID] = cloneTask(t)
	})
	return nil
}

func (r *Tasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	var out *models.Task
	r.s.locked(func(d *data) {
		if t, ok := d.tasks[id]; ok {
			out = cloneTask(t)
		}
	})
	if out == nil {
		return nil, apperr.ErrNotFound
	}
	return out, nil
}

func (r *Tasks) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Task, error) {
	r.s.record("lock task")
	return r.GetByID(ctx, id)
}

func (r *Tasks) AddCompletionTx(_ context.Context, _ pgx.Tx, taskID, userID uuid.UUID, at time.Time, coinsUsed int64, isActive bool) error {
	r.s.record("insert task_completion")
	var err error
	r.s.locked(func(d *data) {
		t, ok := d.tasks[taskID]
		if !ok {
			err = apperr.ErrNotFound
			return
		}
		if t.HasCompleted(userID) {
			err = apperr.ErrDuplicateSubmission
			return
		}
		t.CompletedBy = append(t.CompletedBy, models.TaskCompletion{UserID: userID, CompletedAt: at})
		t.CoinsUsed = coinsUsed
		t.IsActive = isActive
		t.UpdatedAt = r.s.now()
	})
	return err
}

func (r *Tasks) UpdateBudgetTx(_ context.Context, _ pgx.Tx, t *models.Task) error {
	var err error
	r.s.locked(func(d *data) {
		cur, ok := d.tasks[t.ID]
		if !ok {
			err = apperr.ErrNotFound
			return
		}
		cur.RewardPerUser = t.RewardPerUser
		cur.MaxUsers = t.MaxUsers
		cur.TotalBudget = t.TotalBudget
		cur.IsActive = t.IsActive
		cur.UpdatedAt = r.s.now()
	})
	return err
}

// DeleteTx removes the task and, like the foreign key cascade, its submissions.
func (r *Tasks) DeleteTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	r.s.locked(func(d *data) {
		delete(d.tasks, id)
		for sid, s := range d.subs {
			if s.TaskID == id {
				delete(d.subs, sid)
			}
		}
	})
	return nil
}

func (r *Tasks) ListActive(_ context.Context) ([]*models.Task, error) {
	return r.list(func(t *models.Task) bool { return t.IsActive }), nil
}

func (r *Tasks) ListByCreator(_ context.Context, creatorID uuid.UUID) ([]*models.Task, error) {
	return r.list(func(t *models.Task) bool { return t.CreatorID == creatorID }), nil
}

func (r *Tasks) list(match func(*models.Task) bool) []*models.Task {
	var out []*models.Task
	r.s.locked(func(d *data) {
		for _, t := range d.tasks {
			if match(t) {
				cp := cloneTask(t)
				cp.CompletedBy = nil
				out = append(out, cp)
			}
		}
	})
	slices.SortFunc(out, func(a, b *models.Task) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}
