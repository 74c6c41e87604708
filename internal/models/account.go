package models

import (
	"time"

	"github.com/google/uuid"
)

// Account roles.
const (
	RoleUser    = "user"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// Account carries the coin balance and the creator budget wallet. Both are
// mutated only through the ledger.
type Account struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"display_name"`
	PasswordHash        string     `json:"-"`
	Role                string     `json:"role"`
	ReferralCode        string     `json:"referral_code"`
	ReferredBy          *uuid.UUID `json:"referred_by,omitempty"`
	ReferralCreditedAt  *time.Time `json:"referral_credited_at,omitempty"`
	Balance             int64      `json:"balance"`
	LifetimeEarned      int64      `json:"lifetime_earned"`
	LifetimeWithdrawn   int64      `json:"lifetime_withdrawn"`
	CreatorBudgetWallet int64      `json:"creator_budget_wallet"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// BalanceDelta is a signed change applied to an account's counters in one
// UPDATE. Zero fields are left untouched.
type BalanceDelta struct {
	Balance           int64
	LifetimeEarned    int64
	LifetimeWithdrawn int64
	Wallet            int64
}
