package registry

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/metrics"
	"github.com/coinquest/backend/internal/models"
)

// DefaultTTL is how long a loaded table is served before the next read reloads it.
const DefaultTTL = 5 * time.Minute

// Store is the persistence the registry reads overrides from.
type Store interface {
	ListAll(ctx context.Context) ([]models.CoinValueConfig, error)
	Upsert(ctx context.Context, c *models.CoinValueConfig) error
}

// Service resolves reward amounts for action keys.
type Service interface {
	GetValue(ctx context.Context, key string) int64
	GetAllValues(ctx context.Context) map[string]int64
	SetValue(ctx context.Context, key string, value int64, updatedBy uuid.UUID) error
	Invalidate()
}

// Registry caches the merged table of defaults and stored overrides.
// Reads never fail: when the store is unreachable the compiled-in defaults
// are served and nothing is cached, so the next read tries again.
type Registry struct {
	store Store
	ttl   time.Duration
	clock clockwork.Clock
	log   *slog.Logger

	mu       sync.RWMutex
	values   map[string]int64
	loadedAt time.Time
	gen      uint64

	group singleflight.Group
}

var _ Service = (*Registry)(nil)

// New returns a Registry. ttl <= 0 uses DefaultTTL.
func New(store Store, ttl time.Duration, clock clockwork.Clock, log *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{store: store, ttl: ttl, clock: clock, log: log}
}

// GetValue returns the amount for key, or 0 for an unknown key.
func (r *Registry) GetValue(ctx context.Context, key string) int64 {
	return r.table(ctx)[key]
}

// GetAllValues returns a copy of the full table.
func (r *Registry) GetAllValues(ctx context.Context) map[string]int64 {
	return maps.Clone(r.table(ctx))
}

// Invalidate drops the cached table. Reads that start afterwards reload it.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.values = nil
	r.gen++
	r.mu.Unlock()
}

// SetValue stores an override and invalidates the cache before returning, so
// the next read on this instance observes it.
func (r *Registry) SetValue(ctx context.Context, key string, value int64, updatedBy uuid.UUID) error {
	if _, ok := models.DefaultCoinValues[key]; !ok {
		return fmt.Errorf("unknown action %q: %w", key, apperr.ErrValidation)
	}
	if value < 0 {
		return fmt.Errorf("value must be >= 0: %w", apperr.ErrValidation)
	}
	c := &models.CoinValueConfig{ActionKey: key, Value: value, UpdatedBy: updatedBy, UpdatedAt: r.clock.Now()}
	if err := r.store.Upsert(ctx, c); err != nil {
		return fmt.Errorf("store coin value %s: %w", key, err)
	}
	r.Invalidate()
	r.log.Info("coin value updated", "action", key, "value", value, "updated_by", updatedBy)
	return nil
}

func (r *Registry) table(ctx context.Context) map[string]int64 {
	r.mu.RLock()
	values, loadedAt, gen := r.values, r.loadedAt, r.gen
	r.mu.RUnlock()
	if values != nil && r.clock.Since(loadedAt) < r.ttl {
		metrics.CoinValueLookups.WithLabelValues("hit").Inc()
		return values
	}

	// Keying the flight by generation keeps a read that starts after
	// Invalidate from joining a load that started before it.
	v, _, _ := r.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return r.load(context.WithoutCancel(ctx), gen), nil
	})
	return v.(map[string]int64)
}

func (r *Registry) load(ctx context.Context, gen uint64) map[string]int64 {
	overrides, err := r.store.ListAll(ctx)
	if err != nil {
		metrics.CoinValueLookups.WithLabelValues("fallback").Inc()
		r.log.Warn("coin value store unavailable, serving defaults", "error", err)
		return maps.Clone(models.DefaultCoinValues)
	}
	values := maps.Clone(models.DefaultCoinValues)
	for _, c := range overrides {
		values[c.ActionKey] = c.Value
	}
	metrics.CoinValueLookups.WithLabelValues("reload").Inc()

	r.mu.Lock()
	if r.gen == gen {
		r.values = values
		r.loadedAt = r.clock.Now()
	}
	r.mu.Unlock()
	return values
}
