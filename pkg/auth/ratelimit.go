package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginRateLimit is the spec's fixed login/claim budget: 10 requests per
// 30-second window, per client.
const (
	loginRateBurst  = 10
	loginRateWindow = 30 * time.Second
)

// ClientRateLimiter hands out one token-bucket limiter per client IP,
// created lazily on first use.
type ClientRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClientRateLimiter returns a limiter enforcing the login/claim budget.
func NewClientRateLimiter() *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *ClientRateLimiter) limiterFor(clientIP string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, ok := c.limiters[clientIP]
	if !ok {
		// 10 requests per 30s ~= one token every 3s, with a burst of 10
		// allowing the full window's worth up front.
		limiter = rate.NewLimiter(rate.Every(loginRateWindow/loginRateBurst), loginRateBurst)
		c.limiters[clientIP] = limiter
	}
	return limiter
}

// Allow reports whether clientIP may make another request right now.
func (c *ClientRateLimiter) Allow(clientIP string) bool {
	return c.limiterFor(clientIP).Allow()
}
