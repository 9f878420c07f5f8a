package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/internal/handlers"
	"github.com/mstanton/labtrack/internal/services"
)

func registerNotificationRoutes(api *gin.RouterGroup, service *services.NotificationService) {
	handler := handlers.NewNotificationHandler(service)

	notifications := api.Group("/notifications")
	{
		notifications.GET("", handler.List)
		notifications.GET("/unread-count", handler.UnreadCount)
		notifications.POST("/read-all", handler.MarkAllRead)
		notifications.POST("/:id/read", handler.MarkRead)
		notifications.DELETE("/:id", handler.Delete)
	}
}
