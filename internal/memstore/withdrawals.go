package memstore

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/models"
)

type Withdrawals struct {
	s *Store
}

func (r *Withdrawals) CreateTx(_ context.Context, _ pgx.Tx, w *models.Withdrawal) error {
	r.s.record("insert withdrawal")
	r.s.locked(func(d *data) {
		w.CreatedAt = r.s.now()
		cp := *w
		d.withdrawals[w.ID] = &cp
	})
	return nil
}

func (r *Withdrawals) GetByID(_ context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var out *models.Withdrawal
	r.s.locked(func(d *data) {
		if w, ok := d.withdrawals[id]; ok {
			cp := *w
			out = &cp
		}
	})
	if out == nil {
		return nil, apperr.ErrNotFound
	}
	return out, nil
}

func (r *Withdrawals) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Withdrawal, error) {
	return r.GetByID(ctx, id)
}

func (r *Withdrawals) UpdateStatusTx(_ context.Context, _ pgx.Tx, w *models.Withdrawal) error {
	var err error
	r.s.locked(func(d *data) {
		cur, ok := d.withdrawals[w.ID]
		if !ok {
			err = apperr.ErrNotFound
			return
		}
		cur.Status = w.Status
		cur.ProcessedAt = w.ProcessedAt
		cur.RejectionReason = w.RejectionReason
		cur.RefundedAt = w.RefundedAt
	})
	return err
}

func (r *Withdrawals) ListByAccountID(_ context.Context, accountID uuid.UUID) ([]*models.Withdrawal, error) {
	out := r.list(func(w *models.Withdrawal) bool { return w.AccountID == accountID })
	slices.Reverse(out)
	return out, nil
}

func (r *Withdrawals) ListByStatus(_ context.Context, status string) ([]*models.Withdrawal, error) {
	return r.list(func(w *models.Withdrawal) bool { return w.Status == status }), nil
}

// list returns matches oldest first.
func (r *Withdrawals) list(match func(*models.Withdrawal) bool) []*models.Withdrawal {
	var out []*models.Withdrawal
	r.s.locked(func(d *data) {
		for _, w := range d.withdrawals {
			if match(w) {
				cp := *w
				out = append(out, &cp)
			}
		}
	})
	slices.SortStableFunc(out, func(a, b *models.Withdrawal) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}
