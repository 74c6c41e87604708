// Package jobs holds the river workers: referral attribution after signup
// and the periodic ledger reconciliation.
package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// ReferralBonusArgs asks for a new account to be attributed to the owner of
// ReferralCode.
type ReferralBonusArgs struct {
	AccountID    uuid.UUID `json:"account_id"`
	ReferralCode string    `json:"referral_code"`
}

func (ReferralBonusArgs) Kind() string { return "referral_bonus" }

func (ReferralBonusArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 5,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// Attributor links a new account to its referrer and pays the bonus.
type Attributor interface {
	Attribute(ctx context.Context, newAccountID uuid.UUID, referralCode string) error
}

type ReferralBonusWorker struct {
	river.WorkerDefaults[ReferralBonusArgs]
	referrals Attributor
}

func NewReferralBonusWorker(referrals Attributor) *ReferralBonusWorker {
	return &ReferralBonusWorker{referrals: referrals}
}

// Work returns only storage failures, which river retries; bad codes are
// dropped by the attributor.
func (w *ReferralBonusWorker) Work(ctx context.Context, job *river.Job[ReferralBonusArgs]) error {
	if err := w.referrals.Attribute(ctx, job.Args.AccountID, job.Args.ReferralCode); err != nil {
		return fmt.Errorf("attribute referral for %s: %w", job.Args.AccountID, err)
	}
	return nil
}

// Inserter is the part of river.Client used to enqueue jobs.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Enqueuer schedules jobs on a river client.
type Enqueuer struct {
	client Inserter
}

func NewEnqueuer(client Inserter) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueReferral schedules attribution of accountID to referralCode.
func (e *Enqueuer) EnqueueReferral(ctx context.Context, accountID uuid.UUID, referralCode string) error {
	_, err := e.client.Insert(ctx, ReferralBonusArgs{AccountID: accountID, ReferralCode: referralCode}, nil)
	return err
}
