package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/mstanton/labtrack/internal/auth"
	"github.com/mstanton/labtrack/internal/handlers"
	"github.com/mstanton/labtrack/internal/services"
)

func registerAuthRoutes(r *gin.Engine, users *services.UserService, jwt *iauth.JWTService, requireAuth gin.HandlerFunc) {
	handler := handlers.NewAuthHandler(users, jwt)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
		auth.GET("/me", requireAuth, handler.Me)
		auth.POST("/password", requireAuth, handler.ChangePassword)
	}
}
