package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// UserLimiter applies per-user token-bucket admission control so abusive
// traffic cannot starve the safety path. Excess requests are rejected,
// never queued. Stale limiter entries are cleaned up periodically to
// prevent unbounded memory growth.
type UserLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	rps      float64
	burst    int
}

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewUserLimiter creates a limiter allowing rps requests per second with
// the given burst per user.
func NewUserLimiter(rps float64, burst int) *UserLimiter {
	return &UserLimiter{
		limiters: make(map[string]*userLimiter),
		rps:      rps,
		burst:    burst,
	}
}

// Allow reports whether the user's request is admitted.
func (l *UserLimiter) Allow(userID string) bool {
	l.mu.Lock()
	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{
			limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst),
		}
		l.limiters[userID] = ul
	}
	ul.lastAccess = time.Now()
	l.mu.Unlock()

	return ul.limiter.Allow()
}

// Run cleans up stale per-user limiters until ctx is cancelled.
func (l *UserLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-3 * interval)
			l.mu.Lock()
			for id, ul := range l.limiters {
				if ul.lastAccess.Before(cutoff) {
					delete(l.limiters, id)
				}
			}
			l.mu.Unlock()
		}
	}
}
