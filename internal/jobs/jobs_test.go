package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinquest/backend/internal/ledger"
	"github.com/coinquest/backend/internal/memstore"
	"github.com/coinquest/backend/internal/metrics"
	"github.com/coinquest/backend/internal/models"
	"github.com/coinquest/backend/internal/registry"
	"github.com/coinquest/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Referral bonus
// ---------------------------------------------------------------------------

func TestReferralBonusWorker_PaysReferrer(t *testing.T) {
	s := memstore.New()
	l := ledger.New(s.Accounts(), s.Transactions(), nil, nil)
	reg := registry.New(s.CoinValues(), time.Minute, nil, nil)
	referrals := services.NewReferralService(s, s.Accounts(), l, reg, nil, nil)

	referrer := &models.Account{ID: uuid.New(), Email: "ref@x.y", Role: models.RoleUser, ReferralCode: "REFCODE1"}
	newcomer := &models.Account{ID: uuid.New(), Email: "new@x.y", Role: models.RoleUser, ReferralCode: "NEWCODE1"}
	s.Accounts().Put(referrer)
	s.Accounts().Put(newcomer)

	w := NewReferralBonusWorker(referrals)
	job := &river.Job[ReferralBonusArgs]{JobRow: &rivertype.JobRow{}, Args: ReferralBonusArgs{AccountID: newcomer.ID, ReferralCode: "REFCODE1"}}
	require.NoError(t, w.Work(context.Background(), job))
	// A retried job pays nothing more.
	require.NoError(t, w.Work(context.Background(), job))

	got, err := l.Account(context.Background(), referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Balance)
}

type failingAttributor struct{ err error }

func (f failingAttributor) Attribute(context.Context, uuid.UUID, string) error { return f.err }

func TestReferralBonusWorker_ReturnsStorageErrors(t *testing.T) {
	boom := errors.New("connection reset")
	w := NewReferralBonusWorker(failingAttributor{err: boom})
	err := w.Work(context.Background(), &river.Job[ReferralBonusArgs]{JobRow: &rivertype.JobRow{}, Args: ReferralBonusArgs{AccountID: uuid.New()}})
	assert.ErrorIs(t, err, boom)
}

type recordingInserter struct {
	args []river.JobArgs
}

func (r *recordingInserter) Insert(_ context.Context, args river.JobArgs, _ *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	r.args = append(r.args, args)
	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{}}, nil
}

func TestEnqueuer(t *testing.T) {
	ins := &recordingInserter{}
	id := uuid.New()
	require.NoError(t, NewEnqueuer(ins).EnqueueReferral(context.Background(), id, "CODE"))
	require.Len(t, ins.args, 1)
	args := ins.args[0].(ReferralBonusArgs)
	assert.Equal(t, id, args.AccountID)
	assert.Equal(t, "CODE", args.ReferralCode)
	assert.Equal(t, "referral_bonus", args.Kind())
	assert.True(t, args.InsertOpts().UniqueOpts.ByArgs)
}

// ---------------------------------------------------------------------------
// Reconcile
// ---------------------------------------------------------------------------

type staticDrifts struct {
	drifts []ledger.Drift
	err    error
}

func (s staticDrifts) FoldAll(context.Context) ([]ledger.Drift, error) { return s.drifts, s.err }

func TestReconcileWorker_ExportsDrift(t *testing.T) {
	w := NewReconcileWorker(staticDrifts{drifts: []ledger.Drift{
		{AccountID: uuid.New(), StoredBalance: 10, FoldedBalance: 10},
		{AccountID: uuid.New(), StoredBalance: 10, FoldedBalance: 7},
		{AccountID: uuid.New(), StoredWallet: 5, FoldedWallet: 0},
	}}, nil)
	require.NoError(t, w.Work(context.Background(), &river.Job[ReconcileArgs]{JobRow: &rivertype.JobRow{}}))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ReconcileDrift))

	w = NewReconcileWorker(staticDrifts{}, nil)
	require.NoError(t, w.Work(context.Background(), &river.Job[ReconcileArgs]{JobRow: &rivertype.JobRow{}}))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ReconcileDrift))
}

func TestReconcileWorker_FoldFailure(t *testing.T) {
	w := NewReconcileWorker(staticDrifts{err: errors.New("timeout")}, nil)
	assert.Error(t, w.Work(context.Background(), &river.Job[ReconcileArgs]{JobRow: &rivertype.JobRow{}}))
}

func TestPeriodicJobs(t *testing.T) {
	assert.Len(t, PeriodicJobs(time.Hour), 1)
}
