package models

import (
	"time"

	"github.com/google/uuid"
)

// Reward action keys.
const (
	ActionTaskCompletion = "task_completion"
	ActionPostUpload     = "post_upload"
	ActionPostLike       = "post_like"
	ActionReferralSignup = "referral_signup"
	ActionDailyLogin     = "daily_login"
)

// DefaultCoinValues are used when no override is stored or the store is
// unreachable.
var DefaultCoinValues = map[string]int64{
	ActionTaskCompletion: 10,
	ActionPostUpload:     5,
	ActionPostLike:       1,
	ActionReferralSignup: 50,
	ActionDailyLogin:     2,
}

// CoinValueConfig is an operator override of a reward amount.
type CoinValueConfig struct {
	ActionKey string    `json:"action_key"`
	Value     int64     `json:"value"`
	UpdatedBy uuid.UUID `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}
