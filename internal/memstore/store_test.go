package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/models"
)

func TestRollbackRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := uuid.New()
	s.Accounts().Put(&models.Account{ID: id, Balance: 10})

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.Accounts().ApplyDelta(ctx, tx, id, models.BalanceDelta{Balance: 5})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	a, err := s.Accounts().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10), a.Balance)

	// A second Rollback after Commit is a no-op.
	tx, _ = s.Begin(ctx)
	_, err = s.Accounts().ApplyDelta(ctx, tx, id, models.BalanceDelta{Balance: -3})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.Error(t, tx.Rollback(ctx))

	a, _ = s.Accounts().GetByID(ctx, id)
	assert.Equal(t, int64(7), a.Balance)
}

func TestApplyDeltaGuard(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := uuid.New()
	s.Accounts().Put(&models.Account{ID: id, Balance: 1, CreatorBudgetWallet: 1})

	_, err := s.Accounts().ApplyDelta(ctx, nil, id, models.BalanceDelta{Balance: -2})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	_, err = s.Accounts().ApplyDelta(ctx, nil, id, models.BalanceDelta{Wallet: -2})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBudget)
}

func TestSubmissionUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	task, user := uuid.New(), uuid.New()
	require.NoError(t, s.Submissions().Create(ctx, &models.TaskSubmission{ID: uuid.New(), TaskID: task, UserID: user}))
	err := s.Submissions().Create(ctx, &models.TaskSubmission{ID: uuid.New(), TaskID: task, UserID: user})
	assert.ErrorIs(t, err, apperr.ErrDuplicateSubmission)
}

func TestRowsStampedWithInjectedClock(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s := NewWithClock(clock)
	creator := uuid.New()

	first := &models.Task{ID: uuid.New(), CreatorID: creator, Title: "first"}
	require.NoError(t, s.Tasks().CreateTx(ctx, nil, first))
	clock.Advance(time.Minute)
	second := &models.Task{ID: uuid.New(), CreatorID: creator, Title: "second"}
	require.NoError(t, s.Tasks().CreateTx(ctx, nil, second))

	assert.Equal(t, clock.Now().Add(-time.Minute), first.CreatedAt)
	tasks, err := s.Tasks().ListByCreator(ctx, creator)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "second", tasks[0].Title)
	assert.Equal(t, "first", tasks[1].Title)

	acc := &models.Account{ID: uuid.New(), Email: "a@example.com", ReferralCode: "ABCD2345"}
	require.NoError(t, s.Accounts().Create(ctx, acc))
	assert.Equal(t, clock.Now(), acc.CreatedAt)
}
