package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/internal/services"
	"github.com/mstanton/labtrack/pkg/response"
)

// ReportHandler serves the aggregate reporting endpoints.
type ReportHandler struct {
	service *services.ReportService
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(service *services.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// GET /api/reports/summary
func (h *ReportHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// GET /api/reports/categories
func (h *ReportHandler) CategoryDistribution(c *gin.Context) {
	rows, err := h.service.CategoryDistribution(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// GET /api/reports/popular
func (h *ReportHandler) PopularProducts(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 10)

	rows, err := h.service.PopularProducts(requestContext(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// GET /api/reports/overdue
func (h *ReportHandler) Overdue(c *gin.Context) {
	rows, err := h.service.OverdueLoans(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}
