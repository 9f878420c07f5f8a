package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/pkg/errors"
	"github.com/mstanton/labtrack/pkg/metrics"
	"github.com/mstanton/labtrack/pkg/response"
)

// RequireAdmin rejects requests from non-administrators. It must run after
// Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			metrics.RoleChecks.WithLabelValues("denied").Inc()
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !actor.Role.IsAdmin() {
			metrics.RoleChecks.WithLabelValues("denied").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		metrics.RoleChecks.WithLabelValues("allowed").Inc()
		c.Next()
	}
}
