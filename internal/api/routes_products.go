package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/internal/handlers"
	"github.com/mstanton/labtrack/internal/services"
)

func registerProductRoutes(api *gin.RouterGroup, service *services.ProductService, requireAdmin gin.HandlerFunc) {
	handler := handlers.NewProductHandler(service)

	products := api.Group("/products")
	{
		// Browsing is open to every signed-in user.
		products.GET("", handler.List)
		products.GET("/categories", handler.Categories)
		products.GET("/:id", handler.Get)

		// Catalog management is restricted to administrators.
		products.POST("", requireAdmin, handler.Create)
		products.PATCH("/:id", requireAdmin, handler.Update)
		products.POST("/:id/status", requireAdmin, handler.SetStatus)
		products.DELETE("/:id", requireAdmin, handler.Delete)
	}
}
