package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/internal/middleware"
	"github.com/mstanton/labtrack/internal/models"
	apperrors "github.com/mstanton/labtrack/pkg/errors"
	"github.com/mstanton/labtrack/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// mustActor extracts the authenticated actor, writing a 401 when absent.
func mustActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}
