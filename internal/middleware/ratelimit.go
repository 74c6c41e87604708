package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AccountRateLimiter keeps one token bucket per authenticated account.
type AccountRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	log      *slog.Logger
}

// NewAccountRateLimiter allows perMinute requests per account per minute,
// with bursts of up to perMinute.
func NewAccountRateLimiter(perMinute int, log *slog.Logger) *AccountRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &AccountRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		log:      log,
	}
}

func (rl *AccountRateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Handler rejects requests over the limit with 429. Unauthenticated requests
// are keyed by remote address.
func (rl *AccountRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if p, ok := PrincipalFromCtx(r.Context()); ok {
			key = p.AccountID.String()
		}
		if !rl.limiter(key).Allow() {
			rl.log.Warn("rate limit exceeded", "key", key, "path", r.URL.Path)
			http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
