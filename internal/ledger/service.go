package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/metrics"
	"github.com/coinquest/backend/internal/models"
)

// ErrDuplicateEntry is returned when an entry with the same idempotency key
// was already recorded. Nothing is changed.
var ErrDuplicateEntry = errors.New("ledger entry already recorded")

// AccountStore is the account repository surface the ledger needs.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, d models.BalanceDelta) (*models.Account, error)
}

// TransactionStore is the append-only log the ledger writes to.
type TransactionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	ExistsByIdempotencyKeyTx(ctx context.Context, tx pgx.Tx, key string) (bool, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.Transaction, error)
}

// Ledger mutates account balances and appends exactly one Transaction per
// successful mutation. Every method that takes a pgx.Tx must run inside the
// caller's transaction: the account row is locked (SELECT ... FOR UPDATE) so
// concurrent debits on one account are serialized.
type Ledger struct {
	accounts AccountStore
	txs      TransactionStore
	clock    clockwork.Clock
	log      *slog.Logger
}

// New returns a Ledger. A nil clock uses the wall clock; a nil logger uses slog.Default().
func New(accounts AccountStore, txs TransactionStore, clock clockwork.Clock, log *slog.Logger) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{accounts: accounts, txs: txs, clock: clock, log: log}
}

// Lock takes the account row lock without changing anything. Callers that
// insert a row referencing the account must lock it first: the foreign key
// check takes FOR KEY SHARE, which a later FOR UPDATE from a concurrent
// transaction would deadlock against.
func (l *Ledger) Lock(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*models.Account, error) {
	acc, err := l.accounts.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lock account %s: %w", accountID, err)
	}
	return acc, nil
}

// Credit adds amount to the coin balance. Kinds earned, bonus and referral
// also grow lifetime_earned.
func (l *Ledger) Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, kind, description string, refs models.TxRefs) (int64, error) {
	switch kind {
	case models.TxKindEarned, models.TxKindBonus, models.TxKindReferral:
	default:
		return 0, fmt.Errorf("credit kind %q: %w", kind, apperr.ErrValidation)
	}
	d := models.BalanceDelta{Balance: amount}
	if models.CountsAsEarned(kind) {
		d.LifetimeEarned = amount
	}
	return l.apply(ctx, tx, accountID, amount, kind, description, refs, d)
}

// Debit removes amount from the coin balance, failing with
// apperr.ErrInsufficientBalance and changing nothing when amount > balance.
func (l *Ledger) Debit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, kind, description string, refs models.TxRefs) (int64, error) {
	if kind != models.TxKindWithdrawn {
		return 0, fmt.Errorf("debit kind %q: %w", kind, apperr.ErrValidation)
	}
	d := models.BalanceDelta{Balance: -amount, LifetimeWithdrawn: amount}
	return l.apply(ctx, tx, accountID, amount, kind, description, refs, d)
}

// RefundWithdrawal gives a debited withdrawal back and undoes its
// contribution to lifetime_withdrawn.
func (l *Ledger) RefundWithdrawal(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, description string, refs models.TxRefs) (int64, error) {
	d := models.BalanceDelta{Balance: amount, LifetimeWithdrawn: -amount}
	return l.apply(ctx, tx, accountID, amount, models.TxKindRefund, description, refs, d)
}

// FundWallet tops up a creator's budget wallet.
func (l *Ledger) FundWallet(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, description string) (int64, error) {
	return l.apply(ctx, tx, accountID, amount, models.TxKindBudgetDeposit, description, models.TxRefs{}, models.BalanceDelta{Wallet: amount})
}

// DebitWallet reserves task budget from a creator's wallet, failing with
// apperr.ErrInsufficientBudget when the wallet is short.
func (l *Ledger) DebitWallet(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, description string, refs models.TxRefs) (int64, error) {
	return l.apply(ctx, tx, accountID, amount, models.TxKindBudgetAllocation, description, refs, models.BalanceDelta{Wallet: -amount})
}

// CreditWallet returns unused task budget to a creator's wallet.
func (l *Ledger) CreditWallet(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, description string, refs models.TxRefs) (int64, error) {
	return l.apply(ctx, tx, accountID, amount, models.TxKindBudgetRefund, description, refs, models.BalanceDelta{Wallet: amount})
}

func (l *Ledger) apply(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, kind, description string, refs models.TxRefs, d models.BalanceDelta) (int64, error) {
	if amount <= 0 {
		return 0, apperr.ErrInvalidAmount
	}
	acc, err := l.accounts.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return 0, fmt.Errorf("lock account %s: %w", accountID, err)
	}
	if refs.IdempotencyKey != nil {
		seen, err := l.txs.ExistsByIdempotencyKeyTx(ctx, tx, *refs.IdempotencyKey)
		if err != nil {
			return 0, err
		}
		if seen {
			return acc.Balance, ErrDuplicateEntry
		}
	}
	if acc.Balance+d.Balance < 0 {
		return 0, apperr.ErrInsufficientBalance
	}
	if acc.CreatorBudgetWallet+d.Wallet < 0 {
		return 0, apperr.ErrInsufficientBudget
	}

	updated, err := l.accounts.ApplyDelta(ctx, tx, accountID, d)
	if err != nil {
		return 0, fmt.Errorf("update account %s: %w", accountID, err)
	}
	after := updated.Balance
	if models.IsWalletKind(kind) {
		after = updated.CreatorBudgetWallet
	}

	entry := &models.Transaction{
		ID:             uuid.New(),
		AccountID:      accountID,
		Kind:           kind,
		Amount:         amount,
		Description:    description,
		TaskID:         refs.TaskID,
		WithdrawalID:   refs.WithdrawalID,
		BalanceAfter:   after,
		IdempotencyKey: refs.IdempotencyKey,
		CreatedAt:      l.clock.Now(),
	}
	if err := l.txs.CreateTx(ctx, tx, entry); err != nil {
		return 0, fmt.Errorf("append %s entry: %w", kind, err)
	}
	metrics.RecordLedgerEntry(kind, amount)
	return after, nil
}

// Account returns the current balances of an account.
func (l *Ledger) Account(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	return l.accounts.GetByID(ctx, accountID)
}

// History returns the newest entries first. limit <= 0 returns everything.
func (l *Ledger) History(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.Transaction, error) {
	return l.txs.ListByAccountID(ctx, accountID, limit)
}
