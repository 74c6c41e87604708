package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/database"
	"github.com/coinquest/backend/internal/ledger"
	"github.com/coinquest/backend/internal/models"
)

// AwardResult reports what an Award did.
type AwardResult struct {
	Amount    int64 `json:"amount"`
	Balance   int64 `json:"balance"`
	Duplicate bool  `json:"duplicate"`
}

// RewardService credits coins for platform actions at the registry's current value.
type RewardService struct {
	db     database.TxBeginner
	ledger *ledger.Ledger
	values CoinValues
	log    *slog.Logger
}

func NewRewardService(db database.TxBeginner, l *ledger.Ledger, values CoinValues, log *slog.Logger) *RewardService {
	if log == nil {
		log = slog.Default()
	}
	return &RewardService{db: db, ledger: l, values: values, log: log}
}

func kindForAction(action string) string {
	switch action {
	case models.ActionReferralSignup:
		return models.TxKindReferral
	case models.ActionDailyLogin:
		return models.TxKindBonus
	default:
		return models.TxKindEarned
	}
}

// Award credits accountID the value of action. A non-empty reference makes
// the award idempotent per (action, reference): a repeat is reported as
// Duplicate and credits nothing.
func (s *RewardService) Award(ctx context.Context, accountID uuid.UUID, action, reference string) (*AwardResult, error) {
	if _, ok := models.DefaultCoinValues[action]; !ok {
		return nil, fmt.Errorf("unknown action %q: %w", action, apperr.ErrValidation)
	}
	res := &AwardResult{Amount: s.values.GetValue(ctx, action)}
	if res.Amount == 0 {
		acc, err := s.ledger.Account(ctx, accountID)
		if err != nil {
			return nil, err
		}
		res.Balance = acc.Balance
		return res, nil
	}

	refs := models.TxRefs{}
	if reference != "" {
		key := action + ":" + reference
		refs.IdempotencyKey = &key
	}
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		bal, err := s.ledger.Credit(ctx, tx, accountID, res.Amount, kindForAction(action), action, refs)
		if errors.Is(err, ledger.ErrDuplicateEntry) {
			res.Duplicate = true
			res.Balance = bal
			return nil
		}
		res.Balance = bal
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		res.Amount = 0
	}
	return res, nil
}
