package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/memstore"
	"github.com/coinquest/backend/internal/models"
)

// countingStore counts ListAll calls and can hold them until released.
type countingStore struct {
	Store
	loads atomic.Int32
	gate  chan struct{}
}

func (c *countingStore) ListAll(ctx context.Context) ([]models.CoinValueConfig, error) {
	c.loads.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.Store.ListAll(ctx)
}

func newRegistry(t *testing.T) (*Registry, *memstore.Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s := memstore.NewWithClock(clock)
	return New(s.CoinValues(), 5*time.Minute, clock, nil), s, clock
}

func TestGetValue_Defaults(t *testing.T) {
	r, _, _ := newRegistry(t)
	ctx := context.Background()

	assert.Equal(t, int64(10), r.GetValue(ctx, models.ActionTaskCompletion))
	assert.Equal(t, int64(50), r.GetValue(ctx, models.ActionReferralSignup))
	assert.Equal(t, int64(0), r.GetValue(ctx, "unknown"))
	assert.Len(t, r.GetAllValues(ctx), len(models.DefaultCoinValues))
}

func TestGetValue_TTL(t *testing.T) {
	r, s, clock := newRegistry(t)
	ctx := context.Background()

	assert.Equal(t, int64(5), r.GetValue(ctx, models.ActionPostUpload))

	// An override written behind the registry's back is not seen until the TTL passes.
	require.NoError(t, s.CoinValues().Upsert(ctx, &models.CoinValueConfig{ActionKey: models.ActionPostUpload, Value: 7}))
	clock.Advance(4 * time.Minute)
	assert.Equal(t, int64(5), r.GetValue(ctx, models.ActionPostUpload))

	clock.Advance(time.Minute)
	assert.Equal(t, int64(7), r.GetValue(ctx, models.ActionPostUpload))
}

func TestSetValue_VisibleImmediately(t *testing.T) {
	r, _, _ := newRegistry(t)
	ctx := context.Background()

	assert.Equal(t, int64(1), r.GetValue(ctx, models.ActionPostLike))
	require.NoError(t, r.SetValue(ctx, models.ActionPostLike, 3, uuid.New()))
	assert.Equal(t, int64(3), r.GetValue(ctx, models.ActionPostLike))
}

func TestSetValue_Rejects(t *testing.T) {
	r, _, _ := newRegistry(t)
	ctx := context.Background()

	assert.ErrorIs(t, r.SetValue(ctx, models.ActionPostLike, -1, uuid.New()), apperr.ErrValidation)
	assert.ErrorIs(t, r.SetValue(ctx, "made_up", 4, uuid.New()), apperr.ErrValidation)
}

func TestGetValue_StoreFailureFallsBack(t *testing.T) {
	r, s, _ := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, s.CoinValues().Upsert(ctx, &models.CoinValueConfig{ActionKey: models.ActionDailyLogin, Value: 9}))

	s.FailCoinValues(errors.New("connection refused"))
	assert.Equal(t, int64(2), r.GetValue(ctx, models.ActionDailyLogin))

	// The fallback was not cached: the next read after recovery sees the override.
	s.FailCoinValues(nil)
	assert.Equal(t, int64(9), r.GetValue(ctx, models.ActionDailyLogin))
}

func TestGetValue_ConcurrentReloadsCollapse(t *testing.T) {
	s := memstore.New()
	store := &countingStore{Store: s.CoinValues(), gate: make(chan struct{})}
	r := New(store, time.Minute, clockwork.NewFakeClock(), nil)
	ctx := context.Background()

	const readers = 20
	var wg sync.WaitGroup
	results := make([]int64, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetValue(ctx, models.ActionTaskCompletion)
		}(i)
	}
	// Give the readers time to pile onto the in-flight load before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	assert.Equal(t, int32(1), store.loads.Load())
	for _, v := range results {
		assert.Equal(t, int64(10), v)
	}
}
