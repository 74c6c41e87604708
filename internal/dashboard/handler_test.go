package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinquest/backend/internal/database"
	"github.com/coinquest/backend/internal/ledger"
	"github.com/coinquest/backend/internal/memstore"
	"github.com/coinquest/backend/internal/middleware"
	"github.com/coinquest/backend/internal/models"
)

func setup(t *testing.T) (*Handler, *ledger.Ledger, uuid.UUID) {
	t.Helper()
	s := memstore.New()
	l := ledger.New(s.Accounts(), s.Transactions(), nil, nil)
	id := uuid.New()
	s.Accounts().Put(&models.Account{ID: id, Email: "d@x.y", Role: models.RoleUser, ReferralCode: "DASH0001"})
	for i := 0; i < 3; i++ {
		require.NoError(t, database.WithTx(context.Background(), s, func(tx pgx.Tx) error {
			_, err := l.Credit(context.Background(), tx, id, 10, models.TxKindEarned, "reward", models.TxRefs{})
			return err
		}))
	}
	return NewHandler(l, nil), l, id
}

func asUser(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithPrincipal(r.Context(), middleware.Principal{AccountID: id, Role: models.RoleUser}))
}

func TestGetMe(t *testing.T) {
	h, _, id := setup(t)

	rec := httptest.NewRecorder()
	h.GetMe(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/account/me", nil), id))
	require.Equal(t, http.StatusOK, rec.Code)
	var acc models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	assert.Equal(t, int64(30), acc.Balance)
	assert.Equal(t, int64(30), acc.LifetimeEarned)

	rec = httptest.NewRecorder()
	h.GetMe(rec, httptest.NewRequest(http.MethodGet, "/api/v1/account/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.GetMe(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/account/me", nil), uuid.New()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransactions(t *testing.T) {
	h, _, id := setup(t)

	rec := httptest.NewRecorder()
	h.ListTransactions(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/transactions?limit=2", nil), id))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, int64(30), entries[0].BalanceAfter)

	rec = httptest.NewRecorder()
	h.ListTransactions(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/transactions?limit=zero", nil), id))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconcile(t *testing.T) {
	h, _, id := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/accounts/"+id.String()+"/reconcile", nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()
	h.Reconcile(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var d driftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.True(t, d.OK)
	assert.Equal(t, int64(30), d.FoldedBalance)
}
