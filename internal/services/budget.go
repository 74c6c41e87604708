package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/database"
	"github.com/coinquest/backend/internal/ledger"
	"github.com/coinquest/backend/internal/models"
)

// TaskStore is the task repository surface the budget manager needs.
type TaskStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	AddCompletionTx(ctx context.Context, tx pgx.Tx, taskID, userID uuid.UUID, at time.Time, coinsUsed int64, isActive bool) error
	UpdateBudgetTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	ListActive(ctx context.Context) ([]*models.Task, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Task, error)
}

// BudgetManager reserves task budgets from creator wallets and pays them out
// one participant at a time. Methods taking a pgx.Tx run inside the caller's
// transaction and lock the task row before touching the wallet, so the lock
// order is task then account.
type BudgetManager struct {
	db     database.TxBeginner
	tasks  TaskStore
	ledger *ledger.Ledger
	clock  clockwork.Clock
	log    *slog.Logger
}

func NewBudgetManager(db database.TxBeginner, tasks TaskStore, l *ledger.Ledger, clock clockwork.Clock, log *slog.Logger) *BudgetManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &BudgetManager{db: db, tasks: tasks, ledger: l, clock: clock, log: log}
}

// budgetFor returns rewardPerUser*maxUsers, rejecting non-positive inputs and
// products that do not fit in an int64.
func budgetFor(rewardPerUser int64, maxUsers int) (int64, error) {
	if rewardPerUser <= 0 || maxUsers <= 0 {
		return 0, fmt.Errorf("reward_per_user and max_users must be > 0: %w", apperr.ErrValidation)
	}
	if rewardPerUser > math.MaxInt64/int64(maxUsers) {
		return 0, fmt.Errorf("reward_per_user * max_users overflows: %w", apperr.ErrValidation)
	}
	return rewardPerUser * int64(maxUsers), nil
}

// Allocate debits rewardPerUser*maxUsers from the creator wallet and inserts
// the task in the same transaction. The wallet debit locks the creator
// account before the task row that references it is inserted.
func (b *BudgetManager) Allocate(ctx context.Context, tx pgx.Tx, creatorID uuid.UUID, in models.NewTask) (*models.Task, error) {
	total, err := budgetFor(in.RewardPerUser, in.MaxUsers)
	if err != nil {
		return nil, err
	}
	t := &models.Task{
		ID:            uuid.New(),
		CreatorID:     creatorID,
		Title:         in.Title,
		Description:   in.Description,
		RewardPerUser: in.RewardPerUser,
		MaxUsers:      in.MaxUsers,
		TotalBudget:   total,
		IsActive:      true,
	}
	if _, err := b.ledger.DebitWallet(ctx, tx, creatorID, t.TotalBudget, "budget for task "+t.Title, models.TxRefs{TaskID: &t.ID}); err != nil {
		return nil, err
	}
	if err := b.tasks.CreateTx(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Consume pays one participant out of the task budget. It fails with
// apperr.ErrTaskInactive on a closed task and apperr.ErrBudgetExceeded when
// the budget or participant cap would be overrun; nothing changes then.
// The task is closed when the payment exhausts either bound, and a task
// closed that way fails with apperr.ErrTaskExhausted, which matches both.
func (b *BudgetManager) Consume(ctx context.Context, tx pgx.Tx, taskID, userID uuid.UUID, amount int64) (*models.Task, error) {
	t, err := b.tasks.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, fmt.Errorf("lock task %s: %w", taskID, err)
	}
	if !t.IsActive {
		if t.BoundReached() {
			return nil, apperr.ErrTaskExhausted
		}
		return nil, apperr.ErrTaskInactive
	}
	if t.CoinsUsed+amount > t.TotalBudget || len(t.CompletedBy) >= t.MaxUsers {
		return nil, apperr.ErrBudgetExceeded
	}
	if t.HasCompleted(userID) {
		return nil, apperr.ErrDuplicateSubmission
	}
	if _, err := b.ledger.Lock(ctx, tx, userID); err != nil {
		return nil, err
	}

	now := b.clock.Now()
	t.CoinsUsed += amount
	t.CompletedBy = append(t.CompletedBy, models.TaskCompletion{UserID: userID, CompletedAt: now})
	t.IsActive = !t.BoundReached()
	if err := b.tasks.AddCompletionTx(ctx, tx, taskID, userID, now, t.CoinsUsed, t.IsActive); err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}
	if !t.IsActive {
		b.log.Info("task budget exhausted", "task_id", taskID, "coins_used", t.CoinsUsed, "participants", len(t.CompletedBy))
	}
	return t, nil
}

// RefundUnused returns TotalBudget-CoinsUsed to the creator wallet and closes
// the task at its used amount, so a second call refunds nothing.
func (b *BudgetManager) RefundUnused(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int64, error) {
	t, err := b.tasks.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return 0, fmt.Errorf("lock task %s: %w", taskID, err)
	}
	return b.refundLocked(ctx, tx, t)
}

func (b *BudgetManager) refundLocked(ctx context.Context, tx pgx.Tx, t *models.Task) (int64, error) {
	unused := t.Remaining()
	t.TotalBudget = t.CoinsUsed
	t.IsActive = false
	if err := b.tasks.UpdateBudgetTx(ctx, tx, t); err != nil {
		return 0, fmt.Errorf("close task %s: %w", t.ID, err)
	}
	if unused > 0 {
		if _, err := b.ledger.CreditWallet(ctx, tx, t.CreatorID, unused, "unused budget of task "+t.Title, models.TxRefs{TaskID: &t.ID}); err != nil {
			return 0, err
		}
	}
	return unused, nil
}

// Resize changes the reward and participant cap. The new budget may not fall
// below what was already paid, nor the cap below the participants already
// paid (apperr.ErrBelowUsedBudget). The difference is debited from or
// refunded to the creator wallet, and the active flag is recomputed.
func (b *BudgetManager) Resize(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, rewardPerUser int64, maxUsers int) (*models.Task, error) {
	if _, err := budgetFor(rewardPerUser, maxUsers); err != nil {
		return nil, err
	}
	t, err := b.tasks.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, fmt.Errorf("lock task %s: %w", taskID, err)
	}
	return b.resizeLocked(ctx, tx, t, rewardPerUser, maxUsers)
}

func (b *BudgetManager) resizeLocked(ctx context.Context, tx pgx.Tx, t *models.Task, rewardPerUser int64, maxUsers int) (*models.Task, error) {
	newBudget, err := budgetFor(rewardPerUser, maxUsers)
	if err != nil {
		return nil, err
	}
	if newBudget < t.CoinsUsed || maxUsers < len(t.CompletedBy) {
		return nil, apperr.ErrBelowUsedBudget
	}
	delta := newBudget - t.TotalBudget
	refs := models.TxRefs{TaskID: &t.ID}
	switch {
	case delta > 0:
		if _, err := b.ledger.DebitWallet(ctx, tx, t.CreatorID, delta, "budget increase for task "+t.Title, refs); err != nil {
			return nil, err
		}
	case delta < 0:
		if _, err := b.ledger.CreditWallet(ctx, tx, t.CreatorID, -delta, "budget decrease for task "+t.Title, refs); err != nil {
			return nil, err
		}
	}
	t.RewardPerUser = rewardPerUser
	t.MaxUsers = maxUsers
	t.TotalBudget = newBudget
	t.IsActive = !t.BoundReached()
	if err := b.tasks.UpdateBudgetTx(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return t, nil
}

// CreateTask allocates a task for a creator in its own transaction.
func (b *BudgetManager) CreateTask(ctx context.Context, creatorID uuid.UUID, in models.NewTask) (*models.Task, error) {
	var t *models.Task
	err := database.WithTx(ctx, b.db, func(tx pgx.Tx) error {
		var err error
		t, err = b.Allocate(ctx, tx, creatorID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	b.log.Info("task created", "task_id", t.ID, "creator_id", creatorID, "total_budget", t.TotalBudget)
	return t, nil
}

// UpdateTask resizes a task owned by creatorID.
func (b *BudgetManager) UpdateTask(ctx context.Context, creatorID, taskID uuid.UUID, rewardPerUser int64, maxUsers int) (*models.Task, error) {
	if _, err := budgetFor(rewardPerUser, maxUsers); err != nil {
		return nil, err
	}
	var t *models.Task
	err := database.WithTx(ctx, b.db, func(tx pgx.Tx) error {
		locked, err := b.lockOwned(ctx, tx, creatorID, taskID)
		if err != nil {
			return err
		}
		t, err = b.resizeLocked(ctx, tx, locked, rewardPerUser, maxUsers)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTask refunds the unused budget of a task owned by creatorID and
// deletes it together with its submissions.
func (b *BudgetManager) DeleteTask(ctx context.Context, creatorID, taskID uuid.UUID) (int64, error) {
	var refunded int64
	err := database.WithTx(ctx, b.db, func(tx pgx.Tx) error {
		t, err := b.lockOwned(ctx, tx, creatorID, taskID)
		if err != nil {
			return err
		}
		if refunded, err = b.refundLocked(ctx, tx, t); err != nil {
			return err
		}
		return b.tasks.DeleteTx(ctx, tx, taskID)
	})
	if err != nil {
		return 0, err
	}
	b.log.Info("task deleted", "task_id", taskID, "creator_id", creatorID, "refunded", refunded)
	return refunded, nil
}

func (b *BudgetManager) lockOwned(ctx context.Context, tx pgx.Tx, creatorID, taskID uuid.UUID) (*models.Task, error) {
	t, err := b.tasks.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if t.CreatorID != creatorID {
		return nil, apperr.ErrUnauthorized
	}
	return t, nil
}

// FundCreator tops up a creator's budget wallet.
func (b *BudgetManager) FundCreator(ctx context.Context, creatorID uuid.UUID, amount int64) (int64, error) {
	acc, err := b.ledger.Account(ctx, creatorID)
	if err != nil {
		return 0, err
	}
	if acc.Role != models.RoleCreator {
		return 0, fmt.Errorf("account %s is not a creator: %w", creatorID, apperr.ErrValidation)
	}
	var wallet int64
	err = database.WithTx(ctx, b.db, func(tx pgx.Tx) error {
		var err error
		wallet, err = b.ledger.FundWallet(ctx, tx, creatorID, amount, "budget deposit")
		return err
	})
	return wallet, err
}

// ActiveTasks lists open tasks.
func (b *BudgetManager) ActiveTasks(ctx context.Context) ([]*models.Task, error) {
	return b.tasks.ListActive(ctx)
}

// CreatorTasks lists every task a creator owns.
func (b *BudgetManager) CreatorTasks(ctx context.Context, creatorID uuid.UUID) ([]*models.Task, error) {
	return b.tasks.ListByCreator(ctx, creatorID)
}
