package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/internal/handlers"
	"github.com/mstanton/labtrack/internal/services"
)

func registerReportRoutes(api *gin.RouterGroup, service *services.ReportService, requireAdmin gin.HandlerFunc) {
	handler := handlers.NewReportHandler(service)

	reports := api.Group("/reports")
	reports.Use(requireAdmin)
	{
		reports.GET("/summary", handler.Summary)
		reports.GET("/categories", handler.CategoryDistribution)
		reports.GET("/popular", handler.PopularProducts)
		reports.GET("/overdue", handler.Overdue)
	}
}
