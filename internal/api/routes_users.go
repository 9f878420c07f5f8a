package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/internal/handlers"
	"github.com/mstanton/labtrack/internal/services"
)

func registerUserRoutes(api *gin.RouterGroup, service *services.UserService, requireAdmin gin.HandlerFunc) {
	handler := handlers.NewUserHandler(service)

	users := api.Group("/users")
	users.Use(requireAdmin)
	{
		users.GET("", handler.List)
		users.GET("/pending", handler.Pending)
		users.POST("", handler.Create)
		users.GET("/:id", handler.Get)
		users.DELETE("/:id", handler.Delete)
		users.POST("/:id/activate", handler.Activate)
		users.POST("/:id/reject", handler.Reject)
		users.POST("/:id/deactivate", handler.Deactivate)
	}
}
