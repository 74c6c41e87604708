package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is a creator-funded task. TotalBudget is reserved from the creator's
// wallet when the task is created and paid out RewardPerUser at a time.
type Task struct {
	ID            uuid.UUID        `json:"id"`
	CreatorID     uuid.UUID        `json:"creator_id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	RewardPerUser int64            `json:"reward_per_user"`
	MaxUsers      int              `json:"max_users"`
	TotalBudget   int64            `json:"total_budget"`
	CoinsUsed     int64            `json:"coins_used"`
	IsActive      bool             `json:"is_active"`
	CompletedBy   []TaskCompletion `json:"completed_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// TaskCompletion records one paid participant.
type TaskCompletion struct {
	UserID      uuid.UUID `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewTask is the creator input for allocating a task.
type NewTask struct {
	Title         string
	Description   string
	RewardPerUser int64
	MaxUsers      int
}

// Remaining is the part of the budget not yet paid out.
func (t *Task) Remaining() int64 {
	return t.TotalBudget - t.CoinsUsed
}

// BoundReached reports whether the task can pay no further participant:
// the remaining budget is below one reward or the participant cap is hit.
func (t *Task) BoundReached() bool {
	return t.Remaining() < t.RewardPerUser || len(t.CompletedBy) >= t.MaxUsers
}

// HasCompleted reports whether userID was already paid by this task.
func (t *Task) HasCompleted(userID uuid.UUID) bool {
	for _, c := range t.CompletedBy {
		if c.UserID == userID {
			return true
		}
	}
	return false
}
