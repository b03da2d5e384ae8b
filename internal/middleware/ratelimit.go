package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/endo-report-server/internal/domain"
)

const defaultMaxClients = 1024

// ClientLimiter hands out one token bucket per client IP. The least recently
// seen clients are evicted once MaxClients is reached.
type ClientLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewClientLimiter creates a limiter from configuration
func NewClientLimiter(cfg domain.RateLimitConfig) (*ClientLimiter, error) {
	size := cfg.MaxClients
	if size <= 0 {
		size = defaultMaxClients
	}

	cache, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, err
	}

	return &ClientLimiter{
		limiters: cache,
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
	}, nil
}

// Allow reports whether client may issue one more request now
func (l *ClientLimiter) Allow(client string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(client)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(client, limiter)
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// RateLimit rejects requests over the per-client budget with 429
func RateLimit(limiter *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":          "Rate limit exceeded",
				"code":           domain.ErrRateLimit,
				"correlation_id": GetCorrelationID(c),
			})
			return
		}
		c.Next()
	}
}
