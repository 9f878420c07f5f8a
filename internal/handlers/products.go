package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/internal/models"
	"github.com/mstanton/labtrack/internal/services"
	"github.com/mstanton/labtrack/pkg/response"
)

// ProductHandler serves the equipment catalog endpoints.
type ProductHandler struct {
	service *services.ProductService
}

type createProductRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required,max=100"`
	Brand       string `json:"brand" validate:"max=100"`
	Quantity    int    `json:"quantity_available" validate:"omitempty,min=0"`
	Location    string `json:"location" validate:"max=200"`
	Notes       string `json:"notes"`
}

type updateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Brand       *string `json:"brand" validate:"omitempty,max=100"`
	Quantity    *int    `json:"quantity_available" validate:"omitempty,min=0"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
	Notes       *string `json:"notes"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available maintenance damaged"`
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// GET /api/products
func (h *ProductHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 20)

	products, total, err := h.service.List(requestContext(c), services.ListProductsOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.ProductFilters{
			Category: c.Query("category"),
			Status:   models.ProductStatus(c.Query("status")),
			Query:    c.Query("q"),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, products, response.NewMeta(page, perPage, total))
}

// GET /api/products/categories
func (h *ProductHandler) Categories(c *gin.Context) {
	categories, err := h.service.Categories(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, categories)
}

// GET /api/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, product)
}

// POST /api/products
func (h *ProductHandler) Create(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var body createProductRequest
	if !bindAndValidate(c, &body) {
		return
	}

	product, err := h.service.Create(requestContext(c), services.CreateProductInput{
		Name:        body.Name,
		Description: body.Description,
		Category:    body.Category,
		Brand:       body.Brand,
		Quantity:    body.Quantity,
		Location:    body.Location,
		Notes:       body.Notes,
		CreatedByID: actor.ID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, product)
}

// PATCH /api/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	var body updateProductRequest
	if !bindAndValidate(c, &body) {
		return
	}

	product, err := h.service.Update(requestContext(c), c.Param("id"), services.UpdateProductInput{
		Name:        body.Name,
		Description: body.Description,
		Category:    body.Category,
		Brand:       body.Brand,
		Quantity:    body.Quantity,
		Location:    body.Location,
		Notes:       body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, product)
}

// POST /api/products/:id/status
func (h *ProductHandler) SetStatus(c *gin.Context) {
	var body setStatusRequest
	if !bindAndValidate(c, &body) {
		return
	}

	product, err := h.service.SetStatus(requestContext(c), c.Param("id"), models.ProductStatus(body.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, product)
}

// DELETE /api/products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "product deleted"})
}
