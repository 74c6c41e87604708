package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/models"
)

// ErrDuplicateAccount is returned when the email or referral code is taken.
var ErrDuplicateAccount = errors.New("account already exists")

const accountColumns = `id, email, display_name, password_hash, role, referral_code, referred_by, referral_credited_at,
	balance, lifetime_earned, lifetime_withdrawn, creator_budget_wallet, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.Role, &a.ReferralCode, &a.ReferredBy, &a.ReferralCreditedAt,
		&a.Balance, &a.LifetimeEarned, &a.LifetimeWithdrawn, &a.CreatorBudgetWallet, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, apperr.FromNoRows(err)
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, display_name, password_hash, role, referral_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.DisplayName, a.PasswordHash, a.Role, a.ReferralCode).Scan(&a.CreatedAt, &a.UpdatedAt)
	if apperr.IsUniqueViolation(err) {
		return ErrDuplicateAccount
	}
	return err
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
}

func (r *AccountRepo) GetByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE referral_code = $1`, code))
}

// GetByIDForUpdate locks the account row for update. Call within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

// ApplyDelta adds the signed delta to the account counters in one statement.
// The WHERE guard keeps balance and wallet non-negative even if a caller
// skipped the locked read.
func (r *AccountRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, d models.BalanceDelta) (*models.Account, error) {
	a, err := scanAccount(tx.QueryRow(ctx, `
		UPDATE accounts SET
			balance = balance + $2,
			lifetime_earned = lifetime_earned + $3,
			lifetime_withdrawn = lifetime_withdrawn + $4,
			creator_budget_wallet = creator_budget_wallet + $5,
			updated_at = now()
		WHERE id = $1 AND balance + $2 >= 0 AND creator_budget_wallet + $5 >= 0
		RETURNING `+accountColumns, id, d.Balance, d.LifetimeEarned, d.LifetimeWithdrawn, d.Wallet))
	if errors.Is(err, apperr.ErrNotFound) {
		if d.Wallet < 0 {
			return nil, apperr.ErrInsufficientBudget
		}
		return nil, apperr.ErrInsufficientBalance
	}
	return a, err
}

// MarkReferredTx records the referrer and stamps the bonus as paid. It only
// succeeds once per account.
func (r *AccountRepo) MarkReferredTx(ctx context.Context, tx pgx.Tx, id, referrerID uuid.UUID, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET referred_by = $2, referral_credited_at = $3, updated_at = now()
		WHERE id = $1 AND referral_credited_at IS NULL
	`, id, referrerID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
