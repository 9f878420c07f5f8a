package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/mstanton/labtrack/internal/models"
	apperrors "github.com/mstanton/labtrack/pkg/errors"
)

var (
	// ErrProductNotFound indicates the requested product does not exist.
	ErrProductNotFound = apperrors.New("PRODUCT_NOT_FOUND", "Product not found", http.StatusNotFound)
	// ErrProductHasOpenLoans blocks deletion or manual status changes while
	// borrow records still reference the product.
	ErrProductHasOpenLoans = apperrors.New("PRODUCT_HAS_OPEN_LOANS", "Product still has open borrow records", http.StatusConflict)
	// ErrStatusLoanOwned rejects manual transitions into or out of the
	// borrowed state, which is maintained by the loan lifecycle.
	ErrStatusLoanOwned = apperrors.New("PRODUCT_STATUS_LOAN_OWNED", "The borrowed status is managed by the loan lifecycle", http.StatusBadRequest)
)

// CreateProductInput describes the fields accepted when adding equipment.
type CreateProductInput struct {
	Name        string
	Description string
	Category    string
	Brand       string
	Quantity    int
	Location    string
	Notes       string
	CreatedByID string
}

// UpdateProductInput enumerates mutable product attributes.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Category    *string
	Brand       *string
	Quantity    *int
	Location    *string
	Notes       *string
}

// ProductFilters captures listing filters.
type ProductFilters struct {
	Category string
	Status   models.ProductStatus
	Query    string
}

// ListProductsOptions controls pagination for product listing.
type ListProductsOptions struct {
	Page     int
	PageSize int
	Filters  ProductFilters
}

// ProductService manages the equipment catalog.
type ProductService struct {
	db *gorm.DB
}

// NewProductService constructs a ProductService instance.
func NewProductService(db *gorm.DB) (*ProductService, error) {
	if db == nil {
		return nil, errors.New("product service: db is required")
	}
	return &ProductService{db: db}, nil
}

// Create registers a new piece of equipment.
func (s *ProductService) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, apperrors.NewBadRequest("category is required")
	}
	if input.Quantity < 0 {
		return nil, apperrors.NewBadRequest("quantity cannot be negative")
	}

	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}

	product := &models.Product{
		Name:              name,
		Description:       strings.TrimSpace(input.Description),
		Category:          category,
		Brand:             strings.TrimSpace(input.Brand),
		QuantityAvailable: quantity,
		Notes:             strings.TrimSpace(input.Notes),
		Status:            models.ProductAvailable,
	}
	if location := strings.TrimSpace(input.Location); location != "" {
		product.Location = location
	}
	if createdBy := strings.TrimSpace(input.CreatedByID); createdBy != "" {
		product.CreatedByID = &createdBy
	}

	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, fmt.Errorf("product service: create product: %w", err)
	}
	return product, nil
}

// GetByID loads a product by identifier.
func (s *ProductService) GetByID(ctx context.Context, id string) (*models.Product, error) {
	ctx = ensureContext(ctx)

	var product models.Product
	err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("product service: get product: %w", err)
	}
	return &product, nil
}

// List retrieves products matching the supplied filters with pagination.
func (s *ProductService) List(ctx context.Context, opts ListProductsOptions) ([]models.Product, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Product{})
	if category := strings.TrimSpace(opts.Filters.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if opts.Filters.Status != "" {
		if !opts.Filters.Status.Valid() {
			return nil, 0, apperrors.NewBadRequest("unknown product status")
		}
		query = query.Where("status = ?", opts.Filters.Status)
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(description) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("product service: count products: %w", err)
	}

	var products []models.Product
	if err := query.
		Order("name ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("product service: list products: %w", err)
	}

	return products, total, nil
}

// Categories returns the distinct equipment categories in use.
func (s *ProductService) Categories(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)

	var categories []string
	if err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error; err != nil {
		return nil, fmt.Errorf("product service: list categories: %w", err)
	}
	return categories, nil
}

// Update persists mutable attributes for an existing product.
func (s *ProductService) Update(ctx context.Context, id string, input UpdateProductInput) (*models.Product, error) {
	ctx = ensureContext(ctx)

	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != product.Name {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		if category := strings.TrimSpace(*input.Category); category != "" && category != product.Category {
			updates["category"] = category
		}
	}
	if input.Brand != nil {
		updates["brand"] = strings.TrimSpace(*input.Brand)
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, apperrors.NewBadRequest("quantity cannot be negative")
		}
		updates["quantity_available"] = *input.Quantity
	}
	if input.Location != nil {
		if location := strings.TrimSpace(*input.Location); location != "" {
			updates["location"] = location
		}
	}
	if input.Notes != nil {
		updates["notes"] = strings.TrimSpace(*input.Notes)
	}

	if len(updates) == 0 {
		return product, nil
	}

	if err := s.db.WithContext(ctx).Model(product).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("product service: update product: %w", err)
	}

	if err := s.db.WithContext(ctx).First(product, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("product service: reload product: %w", err)
	}
	return product, nil
}

// SetStatus manually adjusts availability, e.g. flagging equipment as under
// maintenance or damaged. The borrowed status cannot be entered or left this
// way.
func (s *ProductService) SetStatus(ctx context.Context, id string, status models.ProductStatus) (*models.Product, error) {
	ctx = ensureContext(ctx)

	if !status.Valid() {
		return nil, apperrors.NewBadRequest("unknown product status")
	}
	if status == models.ProductBorrowed {
		return nil, ErrStatusLoanOwned
	}

	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Status == models.ProductBorrowed {
		return nil, ErrStatusLoanOwned
	}
	if product.Status == status {
		return product, nil
	}

	if err := s.db.WithContext(ctx).Model(product).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("product service: set status: %w", err)
	}
	product.Status = status
	return product, nil
}

// Delete removes a product that has no borrow records referencing it.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	product, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var open int64
	if err := s.db.WithContext(ctx).Model(&models.Borrow{}).
		Where("product_id = ? AND status IN ?", product.ID, openBorrowStatuses()).
		Count(&open).Error; err != nil {
		return fmt.Errorf("product service: count open borrows: %w", err)
	}
	if open > 0 {
		return ErrProductHasOpenLoans
	}

	if err := s.db.WithContext(ctx).Delete(product).Error; err != nil {
		return fmt.Errorf("product service: delete product: %w", err)
	}
	return nil
}
