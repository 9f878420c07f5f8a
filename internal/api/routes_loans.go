package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/internal/handlers"
	"github.com/mstanton/labtrack/internal/services"
)

func registerLoanRoutes(api *gin.RouterGroup, service *services.LoanService, requireAdmin gin.HandlerFunc) {
	handler := handlers.NewLoanHandler(service)

	loans := api.Group("/loans")
	{
		loans.GET("", handler.List)
		loans.POST("", handler.Request)
		loans.GET("/mine", handler.Mine)
		loans.GET("/history", handler.History)
		loans.GET("/overdue", requireAdmin, handler.Overdue)
		loans.GET("/:id", handler.Get)
		loans.POST("/:id/approve", requireAdmin, handler.Approve)
		loans.POST("/:id/reject", requireAdmin, handler.Reject)
		loans.POST("/:id/return", handler.Return)
		loans.POST("/:id/extend", handler.Extend)
		loans.POST("/:id/undo-return", requireAdmin, handler.UndoReturn)
	}
}
