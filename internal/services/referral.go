package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/database"
	"github.com/coinquest/backend/internal/ledger"
	"github.com/coinquest/backend/internal/models"
)

// CoinValues resolves reward amounts by action key.
type CoinValues interface {
	GetValue(ctx context.Context, key string) int64
}

// ReferralAccountStore is the account surface referral attribution needs.
type ReferralAccountStore interface {
	GetByReferralCode(ctx context.Context, code string) (*models.Account, error)
	MarkReferredTx(ctx context.Context, tx pgx.Tx, id, referrerID uuid.UUID, at time.Time) (bool, error)
}

// ReferralService pays the referrer of a new account.
type ReferralService struct {
	db       database.TxBeginner
	accounts ReferralAccountStore
	ledger   *ledger.Ledger
	values   CoinValues
	clock    clockwork.Clock
	log      *slog.Logger
}

func NewReferralService(db database.TxBeginner, accounts ReferralAccountStore, l *ledger.Ledger, values CoinValues, clock clockwork.Clock, log *slog.Logger) *ReferralService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReferralService{db: db, accounts: accounts, ledger: l, values: values, clock: clock, log: log}
}

// Attribute links newAccountID to the owner of referralCode and credits the
// owner the referral_signup value. Unknown codes and self-referrals are
// logged and ignored. The bonus is paid at most once per new account; only
// storage failures are returned.
func (s *ReferralService) Attribute(ctx context.Context, newAccountID uuid.UUID, referralCode string) error {
	if referralCode == "" {
		return nil
	}
	referrer, err := s.accounts.GetByReferralCode(ctx, referralCode)
	if errors.Is(err, apperr.ErrNotFound) {
		s.log.Warn("unknown referral code", "account_id", newAccountID, "referral_code", referralCode)
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up referral code: %w", err)
	}
	if referrer.ID == newAccountID {
		s.log.Warn("self referral ignored", "account_id", newAccountID)
		return nil
	}

	amount := s.values.GetValue(ctx, models.ActionReferralSignup)
	paid := false
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		// referred_by references the referrer, so lock it before the update.
		if _, err := s.ledger.Lock(ctx, tx, referrer.ID); err != nil {
			return err
		}
		marked, err := s.accounts.MarkReferredTx(ctx, tx, newAccountID, referrer.ID, s.clock.Now())
		if err != nil || !marked {
			return err
		}
		if amount <= 0 {
			return nil
		}
		key := "referral:" + newAccountID.String()
		_, err = s.ledger.Credit(ctx, tx, referrer.ID, amount, models.TxKindReferral,
			"referral bonus", models.TxRefs{IdempotencyKey: &key})
		if errors.Is(err, ledger.ErrDuplicateEntry) {
			return nil
		}
		paid = err == nil
		return err
	})
	if err != nil {
		return err
	}
	if paid {
		s.log.Info("referral bonus credited", "account_id", newAccountID, "referrer_id", referrer.ID, "amount", amount)
	}
	return nil
}
