package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction kinds. The first four move the coin balance as earned or paid
// out; refund reverses a withdrawal; the budget_* kinds move the creator
// budget wallet.
const (
	TxKindEarned           = "earned"
	TxKindWithdrawn        = "withdrawn"
	TxKindBonus            = "bonus"
	TxKindReferral         = "referral"
	TxKindRefund           = "refund"
	TxKindBudgetDeposit    = "budget_deposit"
	TxKindBudgetAllocation = "budget_allocation"
	TxKindBudgetRefund     = "budget_refund"
)

// Transaction is one immutable entry of the audit log.
type Transaction struct {
	ID             uuid.UUID  `json:"id"`
	AccountID      uuid.UUID  `json:"account_id"`
	Kind           string     `json:"kind"`
	Amount         int64      `json:"amount"`
	Description    string     `json:"description"`
	TaskID         *uuid.UUID `json:"task_id,omitempty"`
	WithdrawalID   *uuid.UUID `json:"withdrawal_id,omitempty"`
	BalanceAfter   int64      `json:"balance_after"`
	IdempotencyKey *string    `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CountsAsEarned reports whether a credit of this kind grows lifetime_earned.
func CountsAsEarned(kind string) bool {
	return kind == TxKindEarned || kind == TxKindBonus || kind == TxKindReferral
}

// IsWalletKind reports whether the entry moves the creator budget wallet
// rather than the coin balance.
func IsWalletKind(kind string) bool {
	return kind == TxKindBudgetDeposit || kind == TxKindBudgetAllocation || kind == TxKindBudgetRefund
}

// SignedAmount returns the change the entry made to the balance it belongs to:
// withdrawn and budget_allocation subtract, everything else adds.
func (t *Transaction) SignedAmount() int64 {
	if t.Kind == TxKindWithdrawn || t.Kind == TxKindBudgetAllocation {
		return -t.Amount
	}
	return t.Amount
}

// TxRefs links a ledger entry to the object that caused it.
type TxRefs struct {
	TaskID         *uuid.UUID
	WithdrawalID   *uuid.UUID
	IdempotencyKey *string
}
