package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const (
	DefaultRateLimit  = 20
	DefaultRatePeriod = time.Second
)

// RateLimit caps requests per client IP using an in-memory store
func RateLimit(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if period <= 0 {
		period = DefaultRatePeriod
	}

	store := memory.NewStore()
	rateLimiter := limiter.New(store, limiter.Rate{
		Period: period,
		Limit:  limit,
	})
	return mgin.NewMiddleware(rateLimiter)
}
