package memstore

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/models"
)

type Submissions struct {
	s *Store
}

func (r *Submissions) Create(_ context.Context, s *models.TaskSubmission) error {
	return r.s.autocommit(func(d *data) error {
		for _, o := range d.subs {
			if o.TaskID == s.TaskID && o.UserID == s.UserID {
				return apperr.ErrDuplicateSubmission
			}
		}
		s.CreatedAt = r.s.now()
		cp := *s
		d.subs[s.ID] = &cp
		return nil
	})
}

func (r *Submissions) GetByID(_ context.Context, id uuid.UUID) (*models.TaskSubmission, error) {
	var out *models.TaskSubmission
	r.s.locked(func(d *data) {
		if s, ok := d.subs[id]; ok {
			cp := *s
			out = &cp
		}
	})
	if out == nil {
		return nil, apperr.ErrNotFound
	}
	return out, nil
}

func (r *Submissions) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.TaskSubmission, error) {
	return r.GetByID(ctx, id)
}

func (r *Submissions) UpdateReviewTx(_ context.Context, _ pgx.Tx, s *models.TaskSubmission) error {
	var err error
	r.s.locked(func(d *data) {
		cur, ok := d.subs[s.ID]
		if !ok {
			err = apperr.ErrNotFound
			return
		}
		cur.Status = s.Status
		cur.RejectionReason = s.RejectionReason
		cur.ReviewerID = s.ReviewerID
		cur.ReviewedAt = s.ReviewedAt
	})
	return err
}

func (r *Submissions) ListByTask(_ context.Context, taskID uuid.UUID) ([]*models.TaskSubmission, error) {
	return r.list(func(s *models.TaskSubmission) bool { return s.TaskID == taskID }), nil
}

func (r *Submissions) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.TaskSubmission, error) {
	return r.list(func(s *models.TaskSubmission) bool { return s.UserID == userID }), nil
}

func (r *Submissions) list(match func(*models.TaskSubmission) bool) []*models.TaskSubmission {
	var out []*models.TaskSubmission
	r.s.locked(func(d *data) {
		for _, s := range d.subs {
			if match(s) {
				cp := *s
				out = append(out, &cp)
			}
		}
	})
	slices.SortFunc(out, func(a, b *models.TaskSubmission) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}
