package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/coinquest/backend/internal/services"
)

// RewardHandler serves the privileged crediting endpoints.
type RewardHandler struct {
	Rewards   *services.RewardService
	Budget    *services.BudgetManager
	Validator *services.Validator
	Logger    *slog.Logger
}

// --- POST /api/v1/rewards ---

type rewardRequest struct {
	AccountID string `json:"account_id"`
	Action    string `json:"action"`
	Reference string `json:"reference"`
}

// Award credits an account for a platform action at the current coin value.
// Replays with the same reference return 200 with duplicate=true.
func (h *RewardHandler) Award(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := h.Validator.Decode(services.SchemaReward, r.Body, &req); err != nil {
		writeError(w, h.Logger, "award", err)
		return
	}
	id, err := uuid.Parse(req.AccountID)
	if err != nil {
		http.Error(w, `{"error":"invalid account_id"}`, http.StatusBadRequest)
		return
	}
	res, err := h.Rewards.Award(r.Context(), id, req.Action, req.Reference)
	if err != nil {
		writeError(w, h.Logger, "award", err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate || res.Amount == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// --- POST /api/v1/admin/creators/{id}/budget ---

type fundBudgetRequest struct {
	Amount int64 `json:"amount"`
}

func (h *RewardHandler) FundCreator(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req fundBudgetRequest
	if err := h.Validator.Decode(services.SchemaFundBudget, r.Body, &req); err != nil {
		writeError(w, h.Logger, "fund creator", err)
		return
	}
	wallet, err := h.Budget.FundCreator(r.Context(), id, req.Amount)
	if err != nil {
		writeError(w, h.Logger, "fund creator", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "creator_budget_wallet": wallet})
}
