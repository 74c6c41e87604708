package memstore

import (
	"context"

	"github.com/coinquest/backend/internal/models"
)

type CoinValues struct {
	s *Store
}

func (r *CoinValues) ListAll(_ context.Context) ([]models.CoinValueConfig, error) {
	var out []models.CoinValueConfig
	var err error
	r.s.locked(func(d *data) {
		if r.s.coinValuesErr != nil {
			err = r.s.coinValuesErr
			return
		}
		for _, c := range d.coinValues {
			out = append(out, c)
		}
	})
	return out, err
}

func (r *CoinValues) Upsert(_ context.Context, c *models.CoinValueConfig) error {
	return r.s.autocommit(func(d *data) error {
		if r.s.coinValuesErr != nil {
			return r.s.coinValuesErr
		}
		d.coinValues[c.ActionKey] = *c
		return nil
	})
}
