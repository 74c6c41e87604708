package handlers

import (
	"log/slog"
	"net/http"

	"github.com/coinquest/backend/internal/models"
	"github.com/coinquest/backend/internal/services"
)

// TaskHandler serves task, submission and review endpoints.
type TaskHandler struct {
	Budget    *services.BudgetManager
	Review    *services.ReviewService
	Validator *services.Validator
	Logger    *slog.Logger
}

// --- GET /api/v1/tasks ---

func (h *TaskHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Budget.ActiveTasks(r.Context())
	if err != nil {
		writeError(w, h.Logger, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tasks))
}

// --- GET /api/v1/creator/tasks ---

func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	tasks, err := h.Budget.CreatorTasks(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, h.Logger, "list creator tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tasks))
}

// --- POST /api/v1/creator/tasks ---

type createTaskRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	RewardPerUser int64  `json:"reward_per_user"`
	MaxUsers      int    `json:"max_users"`
}

// CreateTask debits reward_per_user * max_users from the creator wallet and
// opens the task.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := h.Validator.Decode(services.SchemaCreateTask, r.Body, &req); err != nil {
		writeError(w, h.Logger, "create task", err)
		return
	}
	t, err := h.Budget.CreateTask(r.Context(), p.AccountID, models.NewTask{
		Title:         req.Title,
		Description:   req.Description,
		RewardPerUser: req.RewardPerUser,
		MaxUsers:      req.MaxUsers,
	})
	if err != nil {
		writeError(w, h.Logger, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// --- PATCH /api/v1/creator/tasks/{id} ---

type updateTaskRequest struct {
	RewardPerUser int64 `json:"reward_per_user"`
	MaxUsers      int   `json:"max_users"`
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := h.Validator.Decode(services.SchemaUpdateTask, r.Body, &req); err != nil {
		writeError(w, h.Logger, "update task", err)
		return
	}
	t, err := h.Budget.UpdateTask(r.Context(), p.AccountID, id, req.RewardPerUser, req.MaxUsers)
	if err != nil {
		writeError(w, h.Logger, "update task", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// --- DELETE /api/v1/creator/tasks/{id} ---

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	refunded, err := h.Budget.DeleteTask(r.Context(), p.AccountID, id)
	if err != nil {
		writeError(w, h.Logger, "delete task", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": id, "refunded": refunded})
}

// --- POST /api/v1/tasks/{id}/submissions ---

type submitRequest struct {
	ProofRef string `json:"proof_ref"`
}

func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req submitRequest
	if err := h.Validator.Decode(services.SchemaSubmission, r.Body, &req); err != nil {
		writeError(w, h.Logger, "submit", err)
		return
	}
	sub, err := h.Review.Submit(r.Context(), taskID, p.AccountID, req.ProofRef)
	if err != nil {
		writeError(w, h.Logger, "submit", err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// --- GET /api/v1/tasks/{id}/submissions ---

func (h *TaskHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	subs, err := h.Review.ListForTask(r.Context(), taskID, reviewerFor(p.AccountID, p.Role))
	if err != nil {
		writeError(w, h.Logger, "list submissions", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(subs))
}

// --- GET /api/v1/submissions ---

func (h *TaskHandler) MySubmissions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	subs, err := h.Review.ListForUser(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, h.Logger, "list my submissions", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(subs))
}

// --- POST /api/v1/submissions/{id}/review ---

type reviewRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

func (h *TaskHandler) ReviewSubmission(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := h.Validator.Decode(services.SchemaReview, r.Body, &req); err != nil {
		writeError(w, h.Logger, "review", err)
		return
	}
	reviewer := reviewerFor(p.AccountID, p.Role)
	var (
		sub *models.TaskSubmission
		err error
	)
	if req.Decision == "approve" {
		sub, err = h.Review.Approve(r.Context(), id, reviewer)
	} else {
		sub, err = h.Review.Reject(r.Context(), id, reviewer, req.Reason)
	}
	if err != nil {
		writeError(w, h.Logger, "review", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
