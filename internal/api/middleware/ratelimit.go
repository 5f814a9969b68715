package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimiter is a token-bucket limiter keyed by client IP.
type rateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     float64 // tokens per second
	burst    float64
}

type visitor struct {
	tokens    float64
	lastCheck time.Time
}

func newRateLimiter(requestsPerMinute, burst int) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     float64(requestsPerMinute) / 60,
		burst:    float64(burst),
	}
	go rl.cleanup()
	return rl
}

func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for key, v := range rl.visitors {
			if time.Since(v.lastCheck) > 2*time.Minute {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		rl.visitors[key] = &visitor{tokens: rl.burst - 1, lastCheck: time.Now()}
		return true
	}

	now := time.Now()
	v.tokens += now.Sub(v.lastCheck).Seconds() * rl.rate
	v.lastCheck = now
	if v.tokens > rl.burst {
		v.tokens = rl.burst
	}
	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// RateLimit throttles requests per client IP. Used on the gateway pull
// endpoint so a misbehaving or compromised gateway cannot hammer the
// planner; normal convergence ticks (one fetch per interval) stay
// well under the default burst.
func RateLimit(requestsPerMinute, burst int) gin.HandlerFunc {
	limiter := newRateLimiter(requestsPerMinute, burst)

	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": 60,
			})
			return
		}
		c.Next()
	}
}
