// Package dashboard serves the signed-in account's own view: balances and
// the transaction history.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/ledger"
	"github.com/coinquest/backend/internal/middleware"
	"github.com/coinquest/backend/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Ledger is the read side of the balance ledger.
type Ledger interface {
	Account(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.Transaction, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (ledger.Drift, error)
}

type Handler struct {
	ledger Ledger
	log    *slog.Logger
}

func NewHandler(l Ledger, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ledger: l, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error(op+" failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	acc, err := h.ledger.Account(r.Context(), p.AccountID)
	if err != nil {
		h.fail(w, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// GET /api/v1/transactions?limit=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"limit must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	entries, err := h.ledger.History(r.Context(), p.AccountID, limit)
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	if entries == nil {
		entries = []*models.Transaction{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type driftResponse struct {
	AccountID     uuid.UUID `json:"account_id"`
	OK            bool      `json:"ok"`
	StoredBalance int64     `json:"stored_balance"`
	FoldedBalance int64     `json:"folded_balance"`
	StoredWallet  int64     `json:"stored_wallet"`
	FoldedWallet  int64     `json:"folded_wallet"`
}

// GET /api/v1/admin/accounts/{id}/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	d, err := h.ledger.Reconcile(r.Context(), id)
	if err != nil {
		h.fail(w, "reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, driftResponse{
		AccountID:     d.AccountID,
		OK:            d.OK(),
		StoredBalance: d.StoredBalance,
		FoldedBalance: d.FoldedBalance,
		StoredWallet:  d.StoredWallet,
		FoldedWallet:  d.FoldedWallet,
	})
}
