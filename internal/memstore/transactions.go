package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coinquest/backend/internal/models"
)

type Transactions struct {
	s *Store
}

func (r *Transactions) CreateTx(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	r.s.locked(func(d *data) {
		cp := *t
		d.txs = append(d.txs, &cp)
		if t.IdempotencyKey != nil {
			d.keys[*t.IdempotencyKey] = true
		}
	})
	return nil
}

func (r *Transactions) ExistsByIdempotencyKeyTx(_ context.Context, _ pgx.Tx, key string) (bool, error) {
	var seen bool
	r.s.locked(func(d *data) { seen = d.keys[key] })
	return seen, nil
}

// ListByAccountID returns the newest entries first.
func (r *Transactions) ListByAccountID(_ context.Context, accountID uuid.UUID, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	r.s.locked(func(d *data) {
		for i := len(d.txs) - 1; i >= 0; i-- {
			if d.txs[i].AccountID != accountID {
				continue
			}
			cp := *d.txs[i]
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				return
			}
		}
	})
	return out, nil
}

// All returns every entry in insertion order.
func (r *Transactions) All() []*models.Transaction {
	var out []*models.Transaction
	r.s.locked(func(d *data) {
		for _, t := range d.txs {
			cp := *t
			out = append(out, &cp)
		}
	})
	return out
}
