package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter throttles order submissions per client. Every request must
// carry X-Client-ID; a client gets at most one request per interval.
type RateLimiter struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	interval time.Duration
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		lastSeen: make(map[string]time.Time),
		interval: interval,
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader("X-Client-ID")
		if clientID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Client-ID header required"})
			c.Abort()
			return
		}

		r.mu.Lock()
		last, seen := r.lastSeen[clientID]
		if seen && time.Since(last) < r.interval {
			r.mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		r.lastSeen[clientID] = time.Now()
		r.prune()
		r.mu.Unlock()

		c.Next()
	}
}

// prune drops clients idle for 100 intervals so the map does not grow without
// bound. Caller holds the lock.
func (r *RateLimiter) prune() {
	if len(r.lastSeen) < 10000 {
		return
	}
	cutoff := time.Now().Add(-100 * r.interval)
	for id, last := range r.lastSeen {
		if last.Before(cutoff) {
			delete(r.lastSeen, id)
		}
	}
}
