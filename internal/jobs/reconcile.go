package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/coinquest/backend/internal/ledger"
	"github.com/coinquest/backend/internal/metrics"
)

// ReconcileArgs triggers one pass comparing every account with its log.
type ReconcileArgs struct{}

func (ReconcileArgs) Kind() string { return "ledger_reconcile" }

func (ReconcileArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

// DriftSource returns stored and folded counters for every account.
type DriftSource interface {
	FoldAll(ctx context.Context) ([]ledger.Drift, error)
}

type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileArgs]
	source DriftSource
	log    *slog.Logger
}

func NewReconcileWorker(source DriftSource, log *slog.Logger) *ReconcileWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ReconcileWorker{source: source, log: log}
}

func (w *ReconcileWorker) Timeout(*river.Job[ReconcileArgs]) time.Duration { return 5 * time.Minute }

func (w *ReconcileWorker) Work(ctx context.Context, _ *river.Job[ReconcileArgs]) error {
	drifts, err := w.source.FoldAll(ctx)
	if err != nil {
		return fmt.Errorf("fold ledger: %w", err)
	}
	bad := 0
	for _, d := range drifts {
		if d.OK() {
			continue
		}
		bad++
		w.log.Warn("ledger drift", "account_id", d.AccountID,
			"stored_balance", d.StoredBalance, "folded_balance", d.FoldedBalance,
			"stored_wallet", d.StoredWallet, "folded_wallet", d.FoldedWallet)
	}
	metrics.ReconcileDrift.Set(float64(bad))
	w.log.Info("ledger reconciled", "accounts", len(drifts), "drifted", bad)
	return nil
}

// PeriodicJobs schedules reconciliation every interval, starting at boot.
func PeriodicJobs(interval time.Duration) []*river.PeriodicJob {
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) { return ReconcileArgs{}, nil },
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}

// Workers registers every worker in this package.
func Workers(referrals Attributor, source DriftSource, log *slog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewReferralBonusWorker(referrals))
	river.AddWorker(workers, NewReconcileWorker(source, log))
	return workers
}
