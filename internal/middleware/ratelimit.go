package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/regrowth-dataset/pkg/response"
)

// RateLimiter is a sliding-window limiter keyed by client
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter allows limit requests per key within window. A limit of
// zero or less disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a request for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	times := rl.requests[key]
	if len(times) >= rl.limit {
		return false
	}
	rl.requests[key] = append(times, now)
	return true
}

// prune drops expired entries of every key
func (rl *RateLimiter) prune(now time.Time) {
	for key, times := range rl.requests {
		i := 0
		for i < len(times) && now.Sub(times[i]) >= rl.window {
			i++
		}
		if i == len(times) {
			delete(rl.requests, key)
		} else if i > 0 {
			rl.requests[key] = times[i:]
		}
	}
}

// RateLimit limits requests per authenticated user, or per client IP when
// the request carries no user
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(UserKey)
		if key == "" {
			key = c.ClientIP()
		}

		if !limiter.Allow(key) {
			response.Error(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}
		c.Next()
	}
}
