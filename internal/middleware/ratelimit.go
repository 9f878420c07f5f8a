package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/internal/cache"
	apperrors "github.com/mstanton/labtrack/pkg/errors"
	"github.com/mstanton/labtrack/pkg/response"
)

// RateLimit limits requests per (clientIP, path) within a fixed window. The
// shared cache store keeps counters consistent across instances when Redis
// backs it.
func RateLimit(store cache.Store, maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 {
		maxRequests = 30
	}
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		if store == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%s", c.ClientIP(), c.FullPath())
		count, remaining, err := store.IncrementWithTTL(c.Request.Context(), key, window)
		if err != nil {
			// A broken limiter must not take the API down with it.
			c.Next()
			return
		}

		if count > int64(maxRequests) {
			c.Header("Retry-After", strconv.Itoa(int(remaining.Seconds())+1))
			response.Error(c, apperrors.New("RATE_LIMITED", "Too many requests, slow down", http.StatusTooManyRequests))
			c.Abort()
			return
		}

		c.Next()
	}
}
