package models

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal statuses.
const (
	WithdrawalPending   = "pending"
	WithdrawalApproved  = "approved"
	WithdrawalRejected  = "rejected"
	WithdrawalCompleted = "completed"
)

// Payment methods accepted for payouts.
const (
	PaymentUPI          = "UPI"
	PaymentBankTransfer = "Bank Transfer"
	PaymentPaytm        = "Paytm"
	PaymentPhonePe      = "PhonePe"
)

// PaymentMethods lists the supported payout methods.
var PaymentMethods = []string{PaymentUPI, PaymentBankTransfer, PaymentPaytm, PaymentPhonePe}

// ValidPaymentMethod reports whether m is a supported payout method.
func ValidPaymentMethod(m string) bool {
	for _, p := range PaymentMethods {
		if p == m {
			return true
		}
	}
	return false
}

// Withdrawal is a payout request. Amount is debited when the request is
// created; RefundedAt is set when it is given back.
type Withdrawal struct {
	ID                 uuid.UUID  `json:"id"`
	AccountID          uuid.UUID  `json:"account_id"`
	Amount             int64      `json:"amount"`
	Status             string     `json:"status"`
	Method             string     `json:"payment_method"`
	DestinationDetails string     `json:"account_details"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	RejectionReason    *string    `json:"rejection_reason,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}
