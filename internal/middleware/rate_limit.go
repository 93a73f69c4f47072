package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vhvplatform/go-smart-notification-service/internal/metrics"
)

// TenantRateLimiter manages rate limiters per tenant
type TenantRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewTenantRateLimiter creates a new tenant rate limiter
func NewTenantRateLimiter(rps float64, burst int) *TenantRateLimiter {
	return &TenantRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// GetLimiter returns the rate limiter for a specific tenant
func (rl *TenantRateLimiter) GetLimiter(tenantID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[tenantID]
	rl.mu.RUnlock()
	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	// double-check after acquiring the write lock
	if limiter, exists = rl.limiters[tenantID]; !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[tenantID] = limiter
	}
	return limiter
}

// RateLimitMiddleware limits requests per tenant. It must run after IdentityMiddleware.
func RateLimitMiddleware(rl *TenantRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := GetTenantID(c)
		if tenantID == "" {
			c.Next()
			return
		}

		if !rl.GetLimiter(tenantID).Allow() {
			metrics.RateLimitExceeded.WithLabelValues(tenantID).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
				"code":  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
