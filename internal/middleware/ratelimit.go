package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window request counter keyed by caller
// identity. There is no sweeper: stale windows are replaced on access
// and the whole table is pruned once it grows past pruneThreshold,
// the same lazy-expiry discipline the session store uses.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]bucket
	limit   int
	window  int64 // milliseconds
	now     func() int64
}

type bucket struct {
	count       int
	windowStart int64
}

const pruneThreshold = 4096

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiterAt(limit, window, func() int64 { return time.Now().UnixMilli() })
}

func NewRateLimiterAt(limit int, window time.Duration, now func() int64) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]bucket),
		limit:   limit,
		window:  window.Milliseconds(),
		now:     now,
	}
}

// Allow counts one request against the key's current window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	nowMillis := rl.now()
	b, ok := rl.buckets[key]
	if !ok || nowMillis-b.windowStart >= rl.window {
		if len(rl.buckets) >= pruneThreshold {
			rl.prune(nowMillis)
		}
		rl.buckets[key] = bucket{count: 1, windowStart: nowMillis}
		return true
	}

	if b.count >= rl.limit {
		return false
	}
	b.count++
	rl.buckets[key] = b
	return true
}

// prune drops every bucket whose window has closed. Caller holds mu.
func (rl *RateLimiter) prune(nowMillis int64) {
	for key, b := range rl.buckets {
		if nowMillis-b.windowStart >= rl.window {
			delete(rl.buckets, key)
		}
	}
}

// RateLimitMiddleware throttles per caller. Admitted callers are keyed
// by client id, so one operator's burst cannot exhaust another's quota
// behind a shared NAT; anonymous callers fall back to the source IP.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(limiterKey(c)) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func limiterKey(c *gin.Context) string {
	if clientID, ok := ClientIDFromContext(c); ok {
		return "client:" + clientID
	}
	return "ip:" + c.ClientIP()
}
