package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/coinquest/backend/internal/memstore"
	"github.com/coinquest/backend/internal/metrics"
)

func TestWithTx_RetriesSerializationFailures(t *testing.T) {
	s := memstore.New()
	before := testutil.ToFloat64(metrics.TxRetries)

	calls := 0
	err := WithTx(context.Background(), s, func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.TxRetries))
}

func TestWithTx_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := WithTx(context.Background(), memstore.New(), func(pgx.Tx) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr)
	assert.Equal(t, retryMax+1, calls)
}

func TestWithTx_BusinessErrorsAreNotRetried(t *testing.T) {
	boom := errors.New("insufficient")
	calls := 0
	err := WithTx(context.Background(), memstore.New(), func(pgx.Tx) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

type failingBeginner struct{}

func (failingBeginner) Begin(context.Context) (pgx.Tx, error) { return nil, errors.New("pool closed") }

func TestWithTx_BeginFailure(t *testing.T) {
	err := WithTx(context.Background(), failingBeginner{}, func(pgx.Tx) error { return nil })
	assert.EqualError(t, err, "pool closed")
}
