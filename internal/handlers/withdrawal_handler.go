package handlers

import (
	"log/slog"
	"net/http"

	"github.com/coinquest/backend/internal/services"
)

// WithdrawalHandler serves payout requests and their admin review.
type WithdrawalHandler struct {
	Withdrawals *services.WithdrawalService
	Validator   *services.Validator
	Logger      *slog.Logger
}

// --- POST /api/v1/withdrawals ---

type withdrawalRequest struct {
	Amount         int64  `json:"amount"`
	PaymentMethod  string `json:"payment_method"`
	AccountDetails string `json:"account_details"`
}

func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req withdrawalRequest
	if err := h.Validator.Decode(services.SchemaWithdrawal, r.Body, &req); err != nil {
		writeError(w, h.Logger, "request withdrawal", err)
		return
	}
	wd, err := h.Withdrawals.Request(r.Context(), p.AccountID, req.Amount, req.PaymentMethod, req.AccountDetails)
	if err != nil {
		writeError(w, h.Logger, "request withdrawal", err)
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

// --- GET /api/v1/withdrawals ---

func (h *WithdrawalHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	list, err := h.Withdrawals.List(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, h.Logger, "list withdrawals", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// --- GET /api/v1/admin/withdrawals?status= ---

func (h *WithdrawalHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "pending"
	}
	list, err := h.Withdrawals.ListByStatus(r.Context(), status)
	if err != nil {
		writeError(w, h.Logger, "list withdrawals by status", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// --- PATCH /api/v1/admin/withdrawals/{id} ---

type withdrawalStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *WithdrawalHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req withdrawalStatusRequest
	if err := h.Validator.Decode(services.SchemaWithdrawalStatus, r.Body, &req); err != nil {
		writeError(w, h.Logger, "set withdrawal status", err)
		return
	}
	wd, err := h.Withdrawals.SetStatus(r.Context(), id, req.Status, req.Reason, p.AccountID)
	if err != nil {
		writeError(w, h.Logger, "set withdrawal status", err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}
