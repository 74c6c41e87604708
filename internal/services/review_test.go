package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/models"
)

// ---------------------------------------------------------------------------
// 1. Submit
// ---------------------------------------------------------------------------

func TestSubmit_OnePerTaskAndUser(t *testing.T) {
	f := newFixture(t)
	_, task := f.newTask(t, 10, 3)
	user, _ := f.submit(t, task.ID)

	_, err := f.review.Submit(context.Background(), task.ID, user, "again.png")
	assert.ErrorIs(t, err, apperr.ErrDuplicateSubmission)
}

func TestSubmit_Rules(t *testing.T) {
	f := newFixture(t)
	creator, task := f.newTask(t, 10, 1)
	ctx := context.Background()

	_, err := f.review.Submit(ctx, task.ID, creator, "mine.png")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.review.Submit(ctx, uuid.New(), uuid.New(), "x.png")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.review.Submit(ctx, task.ID, uuid.New(), "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, sub := f.submit(t, task.ID)
	_, err = f.review.Approve(ctx, sub.ID, admin())
	require.NoError(t, err)
	_, err = f.review.Submit(ctx, task.ID, uuid.New(), "late.png")
	assert.ErrorIs(t, err, apperr.ErrTaskInactive)
}

// ---------------------------------------------------------------------------
// 2. Approve
// ---------------------------------------------------------------------------

func TestApprove_PaysRewardOnce(t *testing.T) {
	f := newFixture(t)
	_, task := f.newTask(t, 20, 5)
	user, sub := f.submit(t, task.ID)
	ctx := context.Background()
	reviewer := admin()

	got, err := f.review.Approve(ctx, sub.ID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, got.Status)
	assert.Equal(t, reviewer.AccountID, *got.ReviewerID)
	assert.NotNil(t, got.ReviewedAt)

	acc := f.get(t, user)
	assert.Equal(t, int64(20), acc.Balance)
	assert.Equal(t, int64(20), acc.LifetimeEarned)
	earned := f.entriesOf(user, models.TxKindEarned)
	require.Len(t, earned, 1)
	assert.Equal(t, task.ID, *earned[0].TaskID)

	// A second approval fails and changes nothing.
	_, err = f.review.Approve(ctx, sub.ID, reviewer)
	assert.ErrorIs(t, err, apperr.ErrAlreadyApproved)
	assert.Equal(t, int64(20), f.get(t, user).Balance)
	assert.Equal(t, int64(20), f.task(t, task.ID).CoinsUsed)
	assert.Len(t, f.entriesOf(user, models.TxKindEarned), 1)
}

func TestApprove_LocksSubmitterBeforeCompletion(t *testing.T) {
	f := newFixture(t)
	_, task := f.newTask(t, 20, 5)
	_, sub := f.submit(t, task.ID)
	ops := f.trace()

	_, err := f.review.Approve(context.Background(), sub.ID, admin())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"lock task", "lock task", "lock account", "insert task_completion", "lock account",
	}, *ops)
}

func TestApprove_FiveApprovalsExhaustTask(t *testing.T) {
	f := newFixture(t)
	_, task := f.newTask(t, 20, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, sub := f.submit(t, task.ID)
		_, err := f.review.Approve(ctx, sub.ID, admin())
		require.NoError(t, err, "approval %d", i+1)
	}
	got := f.task(t, task.ID)
	assert.False(t, got.IsActive)
	assert.Equal(t, int64(100), got.CoinsUsed)

	// The sixth submission was filed before the task closed.
	sixth := f.account(models.RoleUser, 0, 0)
	require.NoError(t, f.store.Submissions().Create(ctx, &models.TaskSubmission{
		ID: uuid.New(), TaskID: task.ID, UserID: sixth, ProofRef: "p", Status: models.SubmissionPending,
	}))
	subs, err := f.store.Submissions().ListByUser(ctx, sixth)
	require.NoError(t, err)
	_, err = f.review.Approve(ctx, subs[0].ID, admin())
	assert.ErrorIs(t, err, apperr.ErrTaskInactive)
	assert.Equal(t, int64(0), f.get(t, sixth).Balance)
}

func TestApprove_ConcurrentForLastSlot(t *testing.T) {
	f := newFixture(t)
	_, task := f.newTask(t, 10, 2)
	ctx := context.Background()

	_, first := f.submit(t, task.ID)
	_, err := f.review.Approve(ctx, first.ID, admin())
	require.NoError(t, err)

	a, subA := f.submit(t, task.ID)
	b, subB := f.submit(t, task.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{subA.ID, subB.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.review.Approve(ctx, id, admin())
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrBudgetExceeded)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(10), f.get(t, a).Balance+f.get(t, b).Balance)

	got := f.task(t, task.ID)
	assert.Equal(t, int64(20), got.CoinsUsed)
	assert.Len(t, got.CompletedBy, 2)
}

func TestConcurrentApprovals_NeverOverspend(t *testing.T) {
	f := newFixture(t)
	_, task := f.newTask(t, 7, 5)
	ctx := context.Background()

	const applicants = 12
	subs := make([]*models.TaskSubmission, applicants)
	for i := range subs {
		_, subs[i] = f.submit(t, task.ID)
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _ = f.review.Approve(ctx, id, admin())
		}(sub.ID)
	}
	wg.Wait()

	got := f.task(t, task.ID)
	assert.LessOrEqual(t, got.CoinsUsed, got.TotalBudget)
	assert.LessOrEqual(t, len(got.CompletedBy), got.MaxUsers)
	assert.Equal(t, int64(35), got.CoinsUsed)

	var paid int64
	for _, e := range f.store.Transactions().All() {
		if e.Kind == models.TxKindEarned {
			paid += e.Amount
		}
	}
	assert.Equal(t, got.CoinsUsed, paid, "every coin used was paid to exactly one user")
}

func TestApprove_CreatorScope(t *testing.T) {
	f := newFixture(t)
	creator, task := f.newTask(t, 10, 2)
	_, sub := f.submit(t, task.ID)
	ctx := context.Background()

	_, err := f.review.Approve(ctx, sub.ID, Reviewer{AccountID: uuid.New(), Scope: ScopeCreator})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.review.Approve(ctx, sub.ID, Reviewer{AccountID: creator, Scope: ScopeCreator})
	assert.NoError(t, err)
}

// ---------------------------------------------------------------------------
// 3. Reject
// ---------------------------------------------------------------------------

func TestReject(t *testing.T) {
	f := newFixture(t)
	_, task := f.newTask(t, 10, 2)
	user, sub := f.submit(t, task.ID)
	ctx := context.Background()

	got, err := f.review.Reject(ctx, sub.ID, admin(), "blurry")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionRejected, got.Status)
	assert.Equal(t, "blurry", *got.RejectionReason)

	// Rejecting again only updates the reason.
	got, err = f.review.Reject(ctx, sub.ID, admin(), "wrong account")
	require.NoError(t, err)
	assert.Equal(t, "wrong account", *got.RejectionReason)

	// A rejected submission blocks a fresh one from the same user.
	_, err = f.review.Submit(ctx, task.ID, user, "new.png")
	assert.ErrorIs(t, err, apperr.ErrDuplicateSubmission)

	// It can still be approved on review.
	got, err = f.review.Approve(ctx, sub.ID, admin())
	require.NoError(t, err)
	assert.Nil(t, got.RejectionReason)
	assert.Equal(t, int64(10), f.get(t, user).Balance)

	_, err = f.review.Reject(ctx, sub.ID, admin(), "changed my mind")
	assert.ErrorIs(t, err, apperr.ErrAlreadyApproved)
	assert.Equal(t, int64(10), f.get(t, user).Balance)
}

func TestListForTask_Authorization(t *testing.T) {
	f := newFixture(t)
	creator, task := f.newTask(t, 10, 3)
	f.submit(t, task.ID)
	f.submit(t, task.ID)
	ctx := context.Background()

	subs, err := f.review.ListForTask(ctx, task.ID, Reviewer{AccountID: creator, Scope: ScopeCreator})
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	_, err = f.review.ListForTask(ctx, task.ID, Reviewer{AccountID: uuid.New(), Scope: ScopeCreator})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
