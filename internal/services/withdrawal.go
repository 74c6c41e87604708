package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/database"
	"github.com/coinquest/backend/internal/ledger"
	"github.com/coinquest/backend/internal/metrics"
	"github.com/coinquest/backend/internal/models"
)

// DefaultMinWithdrawal is the smallest amount a withdrawal may request.
const DefaultMinWithdrawal = 1000

// WithdrawalStore is the withdrawal repository surface the lifecycle needs.
type WithdrawalStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Withdrawal, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Withdrawal, error)
}

// withdrawalTransitions lists the allowed status changes.
var withdrawalTransitions = map[string][]string{
	models.WithdrawalPending:  {models.WithdrawalApproved, models.WithdrawalRejected},
	models.WithdrawalApproved: {models.WithdrawalCompleted, models.WithdrawalRejected},
}

func canTransition(from, to string) bool {
	for _, s := range withdrawalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// WithdrawalService debits coins when a payout is requested and refunds them
// once if the payout is rejected at any point.
type WithdrawalService struct {
	db          database.TxBeginner
	withdrawals WithdrawalStore
	ledger      *ledger.Ledger
	minAmount   int64
	clock       clockwork.Clock
	log         *slog.Logger
}

// NewWithdrawalService returns a WithdrawalService. minAmount <= 0 uses DefaultMinWithdrawal.
func NewWithdrawalService(db database.TxBeginner, withdrawals WithdrawalStore, l *ledger.Ledger, minAmount int64, clock clockwork.Clock, log *slog.Logger) *WithdrawalService {
	if minAmount <= 0 {
		minAmount = DefaultMinWithdrawal
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &WithdrawalService{db: db, withdrawals: withdrawals, ledger: l, minAmount: minAmount, clock: clock, log: log}
}

// Request creates a pending withdrawal and debits amount in the same
// transaction. The debit locks the account before the withdrawal row that
// references it is inserted.
func (s *WithdrawalService) Request(ctx context.Context, accountID uuid.UUID, amount int64, method, details string) (*models.Withdrawal, error) {
	if amount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	if amount < s.minAmount {
		return nil, fmt.Errorf("minimum is %d: %w", s.minAmount, apperr.ErrBelowMinimumWithdrawal)
	}
	if !models.ValidPaymentMethod(method) {
		return nil, fmt.Errorf("%q: %w", method, apperr.ErrInvalidPaymentMethod)
	}
	if details == "" {
		return nil, fmt.Errorf("account_details is required: %w", apperr.ErrValidation)
	}

	w := &models.Withdrawal{
		ID:                 uuid.New(),
		AccountID:          accountID,
		Amount:             amount,
		Status:             models.WithdrawalPending,
		Method:             method,
		DestinationDetails: details,
	}
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := s.ledger.Debit(ctx, tx, accountID, amount, models.TxKindWithdrawn,
			"withdrawal via "+method, models.TxRefs{WithdrawalID: &w.ID}); err != nil {
			return err
		}
		if err := s.withdrawals.CreateTx(ctx, tx, w); err != nil {
			return fmt.Errorf("create withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Withdrawals.WithLabelValues(models.WithdrawalPending).Inc()
	s.log.Info("withdrawal requested", "withdrawal_id", w.ID, "account_id", accountID, "amount", amount, "method", method)
	return w, nil
}

// SetStatus applies an admin decision. Allowed: pending to approved or
// rejected, approved to completed or rejected. Entering rejected refunds the
// amount in the same transaction, guarded by RefundedAt so it happens once.
func (s *WithdrawalService) SetStatus(ctx context.Context, id uuid.UUID, status, reason string, adminID uuid.UUID) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		w, err = s.withdrawals.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("lock withdrawal %s: %w", id, err)
		}
		if !canTransition(w.Status, status) {
			return fmt.Errorf("%s -> %s: %w", w.Status, status, apperr.ErrInvalidTransition)
		}

		now := s.clock.Now()
		w.Status = status
		w.ProcessedAt = &now
		if status == models.WithdrawalRejected {
			if reason != "" {
				w.RejectionReason = &reason
			}
			if w.RefundedAt == nil {
				key := "withdrawal-refund:" + w.ID.String()
				if _, err := s.ledger.RefundWithdrawal(ctx, tx, w.AccountID, w.Amount,
					"refund of rejected withdrawal", models.TxRefs{WithdrawalID: &w.ID, IdempotencyKey: &key}); err != nil {
					return err
				}
				w.RefundedAt = &now
			}
		}
		return s.withdrawals.UpdateStatusTx(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}
	metrics.Withdrawals.WithLabelValues(status).Inc()
	s.log.Info("withdrawal status changed", "withdrawal_id", id, "status", status, "admin_id", adminID)
	return w, nil
}

// Get returns one withdrawal.
func (s *WithdrawalService) Get(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return s.withdrawals.GetByID(ctx, id)
}

// List returns an account's withdrawals, newest first.
func (s *WithdrawalService) List(ctx context.Context, accountID uuid.UUID) ([]*models.Withdrawal, error) {
	return s.withdrawals.ListByAccountID(ctx, accountID)
}

// ListByStatus returns withdrawals in status, oldest first.
func (s *WithdrawalService) ListByStatus(ctx context.Context, status string) ([]*models.Withdrawal, error) {
	switch status {
	case models.WithdrawalPending, models.WithdrawalApproved, models.WithdrawalRejected, models.WithdrawalCompleted:
	default:
		return nil, fmt.Errorf("status %q: %w", status, apperr.ErrValidation)
	}
	return s.withdrawals.ListByStatus(ctx, status)
}
