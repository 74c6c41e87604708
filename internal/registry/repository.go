package registry

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinquest/backend/internal/models"
)

// Repository persists operator overrides in coin_values.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListAll(ctx context.Context) ([]models.CoinValueConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT action_key, value, updated_by, updated_at FROM coin_values`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CoinValueConfig, error) {
		var c models.CoinValueConfig
		err := row.Scan(&c.ActionKey, &c.Value, &c.UpdatedBy, &c.UpdatedAt)
		return c, err
	})
}

func (r *Repository) Upsert(ctx context.Context, c *models.CoinValueConfig) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO coin_values (action_key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (action_key) DO UPDATE
		SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`, c.ActionKey, c.Value, c.UpdatedBy, c.UpdatedAt)
	return err
}
