// Package database owns the connection-level plumbing: transactions with
// conflict retries and schema migrations.
package database

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/jackc/pgx/v5"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/metrics"
)

// TxBeginner abstracts transaction creation so services and tests do not need
// a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	retryBaseDelay = 10 * time.Millisecond
	retryMaxDelay  = 200 * time.Millisecond
	retryMax       = 4
)

var txRetry = retrypolicy.NewBuilder[any]().
	HandleIf(func(_ any, err error) bool { return apperr.IsRetryable(err) }).
	WithBackoff(retryBaseDelay, retryMaxDelay).
	WithMaxRetries(retryMax).
	WithJitterFactor(0.1).
	ReturnLastFailure().
	OnRetry(func(failsafe.ExecutionEvent[any]) { metrics.TxRetries.Inc() }).
	Build()

// WithTx runs fn inside a transaction and commits it. Serialization failures
// and deadlocks roll back and run fn again in a fresh transaction; any other
// error rolls back and is returned as is.
func WithTx(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	return failsafe.With[any](txRetry).WithContext(ctx).Run(func() error {
		return runOnce(ctx, db, fn)
	})
}

func runOnce(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
