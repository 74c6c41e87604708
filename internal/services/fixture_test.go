package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/coinquest/backend/internal/ledger"
	"github.com/coinquest/backend/internal/memstore"
	"github.com/coinquest/backend/internal/models"
	"github.com/coinquest/backend/internal/registry"
)

// ---------------------------------------------------------------------------
// Shared wiring over the in-memory store.
// ---------------------------------------------------------------------------

type fixture struct {
	store       *memstore.Store
	clock       *clockwork.FakeClock
	ledger      *ledger.Ledger
	registry    *registry.Registry
	budget      *BudgetManager
	review      *ReviewService
	withdrawals *WithdrawalService
	referrals   *ReferralService
	rewards     *RewardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s := memstore.NewWithClock(clock)
	l := ledger.New(s.Accounts(), s.Transactions(), clock, nil)
	reg := registry.New(s.CoinValues(), time.Minute, clock, nil)
	budget := NewBudgetManager(s, s.Tasks(), l, clock, nil)
	return &fixture{
		store:       s,
		clock:       clock,
		ledger:      l,
		registry:    reg,
		budget:      budget,
		review:      NewReviewService(s, s.Submissions(), s.Tasks(), budget, l, clock, nil),
		withdrawals: NewWithdrawalService(s, s.Withdrawals(), l, 100, clock, nil),
		referrals:   NewReferralService(s, s.Accounts(), l, reg, clock, nil),
		rewards:     NewRewardService(s, l, reg, nil),
	}
}

// account seeds an account with the given balance and creator wallet.
func (f *fixture) account(role string, balance, wallet int64) uuid.UUID {
	id := uuid.New()
	f.store.Accounts().Put(&models.Account{
		ID:                  id,
		Email:               id.String() + "@example.com",
		Role:                role,
		ReferralCode:        id.String()[:8],
		Balance:             balance,
		CreatorBudgetWallet: wallet,
	})
	return id
}

func (f *fixture) get(t *testing.T, id uuid.UUID) *models.Account {
	t.Helper()
	a, err := f.ledger.Account(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (f *fixture) task(t *testing.T, id uuid.UUID) *models.Task {
	t.Helper()
	task, err := f.store.Tasks().GetByID(context.Background(), id)
	require.NoError(t, err)
	return task
}

func (f *fixture) entriesOf(id uuid.UUID, kind string) []*models.Transaction {
	var out []*models.Transaction
	for _, e := range f.store.Transactions().All() {
		if e.AccountID == id && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// newTask creates a task for a fresh creator funded with exactly its budget.
func (f *fixture) newTask(t *testing.T, reward int64, maxUsers int) (creator uuid.UUID, task *models.Task) {
	t.Helper()
	creator = f.account(models.RoleCreator, 0, reward*int64(maxUsers))
	task, err := f.budget.CreateTask(context.Background(), creator, models.NewTask{Title: "Follow", RewardPerUser: reward, MaxUsers: maxUsers})
	require.NoError(t, err)
	return creator, task
}

// submit creates a fresh user and a pending submission for taskID.
func (f *fixture) submit(t *testing.T, taskID uuid.UUID) (user uuid.UUID, sub *models.TaskSubmission) {
	t.Helper()
	user = f.account(models.RoleUser, 0, 0)
	sub, err := f.review.Submit(context.Background(), taskID, user, "proofs/"+user.String()+".png")
	require.NoError(t, err)
	return user, sub
}

// trace records the account-related locks and inserts made from now on.
func (f *fixture) trace() *[]string {
	var ops []string
	f.store.Trace(func(op string) { ops = append(ops, op) })
	return &ops
}

func admin() Reviewer {
	return Reviewer{AccountID: uuid.New(), Scope: ScopeAdmin}
}
