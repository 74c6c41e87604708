package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Reconcile folds one account's full log and compares it with the stored
// counters.
func (l *Ledger) Reconcile(ctx context.Context, accountID uuid.UUID) (Drift, error) {
	acc, err := l.accounts.GetByID(ctx, accountID)
	if err != nil {
		return Drift{}, err
	}
	entries, err := l.txs.ListByAccountID(ctx, accountID, 0)
	if err != nil {
		return Drift{}, err
	}
	d := Fold(accountID, entries)
	d.StoredBalance = acc.Balance
	d.StoredWallet = acc.CreatorBudgetWallet
	if !d.OK() {
		l.log.Warn("ledger drift", "account_id", accountID,
			"stored_balance", d.StoredBalance, "folded_balance", d.FoldedBalance,
			"stored_wallet", d.StoredWallet, "folded_wallet", d.FoldedWallet)
	}
	return d, nil
}
