package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Default per-user request budget. Chat turns are the expensive path, so
// the refill rate is modest while the burst absorbs page loads that fire
// several listing requests at once.
const (
	DefaultRateLimit = 5.0
	DefaultRateBurst = 20

	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterStaleThreshold  = 10 * time.Minute
)

// userRateLimiter applies a token bucket per authenticated user. Stale
// entries are swept inline during allow() calls.
type userRateLimiter struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*userBucket
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newUserRateLimiter creates a rate limiter. r is tokens refilled per
// second; burst is the maximum (and initial) allowance.
func newUserRateLimiter(r float64, burst int) *userRateLimiter {
	return &userRateLimiter{
		users:       make(map[uuid.UUID]*userBucket),
		limit:       rate.Limit(r),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

// allow reports whether the user has tokens left for one more request.
func (rl *userRateLimiter) allow(userID uuid.UUID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	if now.Sub(rl.lastCleanup) > rateLimiterCleanupInterval {
		for id, b := range rl.users {
			if now.Sub(b.lastSeen) > rateLimiterStaleThreshold {
				delete(rl.users, id)
			}
		}
		rl.lastCleanup = now
	}

	b, exists := rl.users[userID]
	if !exists {
		limiter := rate.NewLimiter(rl.limit, rl.burst)
		rl.users[userID] = &userBucket{limiter: limiter, lastSeen: now}
		limiter.Allow()
		return true
	}

	b.lastSeen = now
	return b.limiter.Allow()
}

// rateLimitMiddleware limits authenticated API requests per user. Requests
// without a user in context (health endpoints) pass through untouched.
// Must sit after authMiddleware in the chain.
func rateLimitMiddleware(rl *userRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := userIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if !rl.allow(userID) {
				logger.Warn("rate limit exceeded",
					"user_id", userID,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
