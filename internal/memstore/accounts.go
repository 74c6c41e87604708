package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/models"
	"github.com/coinquest/backend/internal/repository"
)

type Accounts struct {
	s *Store
}

func (r *Accounts) Create(_ context.Context, a *models.Account) error {
	return r.s.autocommit(func(d *data) error {
		for _, o := range d.accounts {
			if o.Email == a.Email || o.ReferralCode == a.ReferralCode {
				return repository.ErrDuplicateAccount
			}
		}
		now := r.s.now()
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		cp := *a
		d.accounts[a.ID] = &cp
		return nil
	})
}

func (r *Accounts) get(match func(*models.Account) bool) (*models.Account, error) {
	var out *models.Account
	r.s.locked(func(d *data) {
		for _, a := range d.accounts {
			if match(a) {
				cp := *a
				out = &cp
				return
			}
		}
	})
	if out == nil {
		return nil, apperr.ErrNotFound
	}
	return out, nil
}

func (r *Accounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	return r.get(func(a *models.Account) bool { return a.ID == id })
}

func (r *Accounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	return r.get(func(a *models.Account) bool { return a.Email == email })
}

func (r *Accounts) GetByReferralCode(_ context.Context, code string) (*models.Account, error) {
	return r.get(func(a *models.Account) bool { return a.ReferralCode == code })
}

func (r *Accounts) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	r.s.record("lock account")
	return r.GetByID(ctx, id)
}

func (r *Accounts) ApplyDelta(_ context.Context, _ pgx.Tx, id uuid.UUID, delta models.BalanceDelta) (*models.Account, error) {
	var out *models.Account
	var err error
	r.s.locked(func(d *data) {
		a, ok := d.accounts[id]
		if !ok {
			err = apperr.ErrNotFound
			return
		}
		if a.Balance+delta.Balance < 0 {
			err = apperr.ErrInsufficientBalance
			return
		}
		if a.CreatorBudgetWallet+delta.Wallet < 0 {
			err = apperr.ErrInsufficientBudget
			return
		}
		a.Balance += delta.Balance
		a.LifetimeEarned += delta.LifetimeEarned
		a.LifetimeWithdrawn += delta.LifetimeWithdrawn
		a.CreatorBudgetWallet += delta.Wallet
		a.UpdatedAt = r.s.now()
		cp := *a
		out = &cp
	})
	return out, err
}

func (r *Accounts) MarkReferredTx(_ context.Context, _ pgx.Tx, id, referrerID uuid.UUID, at time.Time) (bool, error) {
	r.s.record("set referred_by")
	var marked bool
	var err error
	r.s.locked(func(d *data) {
		a, ok := d.accounts[id]
		if !ok {
			err = apperr.ErrNotFound
			return
		}
		if a.ReferralCreditedAt != nil {
			return
		}
		a.ReferredBy = &referrerID
		a.ReferralCreditedAt = &at
		marked = true
	})
	return marked, err
}

// Put stores a copy of a as is. Tests use it to seed balances.
func (r *Accounts) Put(a *models.Account) {
	r.s.locked(func(d *data) {
		cp := *a
		d.accounts[a.ID] = &cp
	})
}
