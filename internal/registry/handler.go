package registry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/middleware"
)

type setValueRequest struct {
	Value *int64 `json:"value"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// GET /api/v1/coin-values
func (h *Handler) ListValues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetAllValues(r.Context()))
}

// PUT /api/v1/admin/coin-values/{key}
func (h *Handler) SetValue(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	key := r.PathValue("key")
	var req setValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		http.Error(w, `{"error":"value is required"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.SetValue(r.Context(), key, *req.Value, p.AccountID); err != nil {
		status := apperr.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error("set coin value failed", "action", key, "error", err)
			http.Error(w, `{"error":"internal error"}`, status)
			return
		}
		if errors.Is(err, apperr.ErrValidation) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"action_key": key, "value": *req.Value})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
