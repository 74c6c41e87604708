package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinquest/backend/internal/models"
)

// Drift compares an account's stored counters with the fold of its log.
type Drift struct {
	AccountID     uuid.UUID
	StoredBalance int64
	FoldedBalance int64
	StoredWallet  int64
	FoldedWallet  int64
}

// OK reports whether the stored counters match the log.
func (d Drift) OK() bool {
	return d.StoredBalance == d.FoldedBalance && d.StoredWallet == d.FoldedWallet
}

// Fold sums entries the way the ledger applied them.
func Fold(accountID uuid.UUID, entries []*models.Transaction) Drift {
	d := Drift{AccountID: accountID}
	for _, e := range entries {
		if models.IsWalletKind(e.Kind) {
			d.FoldedWallet += e.SignedAmount()
		} else {
			d.FoldedBalance += e.SignedAmount()
		}
	}
	return d
}

// Repository runs the set-based reconciliation query.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FoldAll returns stored vs folded counters for every account.
func (r *Repository) FoldAll(ctx context.Context) ([]Drift, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.balance, a.creator_budget_wallet,
			COALESCE(SUM(CASE
				WHEN t.kind = 'withdrawn' THEN -t.amount
				WHEN t.kind IN ('earned', 'bonus', 'referral', 'refund') THEN t.amount
				ELSE 0 END), 0),
			COALESCE(SUM(CASE
				WHEN t.kind = 'budget_allocation' THEN -t.amount
				WHEN t.kind IN ('budget_deposit', 'budget_refund') THEN t.amount
				ELSE 0 END), 0)
		FROM accounts a
		LEFT JOIN transactions t ON t.account_id = a.id
		GROUP BY a.id, a.balance, a.creator_budget_wallet
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.AccountID, &d.StoredBalance, &d.StoredWallet, &d.FoldedBalance, &d.FoldedWallet); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
