package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mstanton/labtrack/internal/cache"
	"github.com/mstanton/labtrack/internal/models"
	"github.com/mstanton/labtrack/pkg/logger"
)

const (
	summaryCacheKey = "reports:summary"
	summaryCacheTTL = 5 * time.Minute
)

// Summary aggregates headline counts for the dashboard.
type Summary struct {
	TotalProducts   int64 `json:"total_products"`
	TotalUsers      int64 `json:"total_users"`
	PendingUsers    int64 `json:"pending_users"`
	TotalBorrows    int64 `json:"total_borrows"`
	PendingRequests int64 `json:"pending_requests"`
	ActiveLoans     int64 `json:"active_loans"`
	OverdueLoans    int64 `json:"overdue_loans"`
	ReturnedLoans   int64 `json:"returned_loans"`
}

// CategoryCount pairs an equipment category with its product count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// ProductUsage pairs a product with how often it has been borrowed.
type ProductUsage struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	BorrowCount int64  `json:"borrow_count"`
}

// OverdueLoan is the report row for a late loan, joined with borrower and
// product details.
type OverdueLoan struct {
	BorrowID           string    `json:"borrow_id"`
	Username           string    `json:"username"`
	MemberID           string    `json:"member_id"`
	ProductName        string    `json:"product_name"`
	ExpectedReturnDate time.Time `json:"expected_return_date"`
	DaysOverdue        int       `json:"days_overdue"`
}

// ReportService produces aggregate views over the catalog and loan data.
// When a cache store is supplied the summary is served from it with a short
// TTL; all other reports always hit the database.
type ReportService struct {
	db    *gorm.DB
	store cache.Store
	now   func() time.Time
}

// NewReportService constructs a ReportService. The cache store is optional.
func NewReportService(db *gorm.DB, store cache.Store) (*ReportService, error) {
	if db == nil {
		return nil, errors.New("report service: db is required")
	}
	return &ReportService{
		db:    db,
		store: store,
		now:   time.Now,
	}, nil
}

// Summary returns headline counts, served from cache when possible.
func (s *ReportService) Summary(ctx context.Context) (*Summary, error) {
	ctx = ensureContext(ctx)

	if s.store != nil {
		if data, found, err := s.store.Get(ctx, summaryCacheKey); err == nil && found {
			var cached Summary
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	summary, err := s.computeSummary(ctx)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.store.Set(ctx, summaryCacheKey, data, summaryCacheTTL); err != nil {
				logger.WithModule("reports").Warn("summary cache write failed", zap.Error(err))
			}
		}
	}

	return summary, nil
}

// InvalidateSummary drops the cached summary, forcing the next read to
// recompute.
func (s *ReportService) InvalidateSummary(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ensureContext(ctx), summaryCacheKey); err != nil {
		logger.WithModule("reports").Warn("summary cache invalidation failed", zap.Error(err))
	}
}

func (s *ReportService) computeSummary(ctx context.Context) (*Summary, error) {
	var summary Summary

	counts := []struct {
		dest  *int64
		model any
		conds []any
	}{
		{&summary.TotalProducts, &models.Product{}, nil},
		{&summary.TotalUsers, &models.User{}, nil},
		{&summary.PendingUsers, &models.User{}, []any{"is_active = ?", false}},
		{&summary.TotalBorrows, &models.Borrow{}, nil},
		{&summary.PendingRequests, &models.Borrow{}, []any{"status = ?", models.BorrowPending}},
		{&summary.ActiveLoans, &models.Borrow{}, []any{"status = ?", models.BorrowActive}},
		{&summary.ReturnedLoans, &models.Borrow{}, []any{"status = ?", models.BorrowReturned}},
	}
	for _, c := range counts {
		query := s.db.WithContext(ctx).Model(c.model)
		if len(c.conds) > 0 {
			query = query.Where(c.conds[0], c.conds[1:]...)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("report service: summary count: %w", err)
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.Borrow{}).
		Scopes(overdueScope(s.now())).
		Count(&summary.OverdueLoans).Error; err != nil {
		return nil, fmt.Errorf("report service: overdue count: %w", err)
	}

	return &summary, nil
}

// CategoryDistribution returns product counts grouped by category.
func (s *ReportService) CategoryDistribution(ctx context.Context) ([]CategoryCount, error) {
	ctx = ensureContext(ctx)

	var rows []CategoryCount
	if err := s.db.WithContext(ctx).Model(&models.Product{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("count DESC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("report service: category distribution: %w", err)
	}
	return rows, nil
}

// PopularProducts returns the most frequently borrowed equipment.
func (s *ReportService) PopularProducts(ctx context.Context, limit int) ([]ProductUsage, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var rows []ProductUsage
	if err := s.db.WithContext(ctx).Model(&models.Borrow{}).
		Select("products.id AS product_id, products.name, products.category, COUNT(borrows.id) AS borrow_count").
		Joins("JOIN products ON products.id = borrows.product_id").
		Group("products.id, products.name, products.category").
		Order("borrow_count DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("report service: popular products: %w", err)
	}
	return rows, nil
}

// OverdueLoans lists every late active loan joined with borrower and product.
func (s *ReportService) OverdueLoans(ctx context.Context) ([]OverdueLoan, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	var borrows []models.Borrow
	if err := s.db.WithContext(ctx).
		Scopes(overdueScope(now)).
		Order("expected_return_date ASC").
		Preload("User").
		Preload("Product").
		Find(&borrows).Error; err != nil {
		return nil, fmt.Errorf("report service: overdue loans: %w", err)
	}

	rows := make([]OverdueLoan, 0, len(borrows))
	for _, borrow := range borrows {
		row := OverdueLoan{
			BorrowID:           borrow.ID,
			ExpectedReturnDate: borrow.ExpectedReturnDate,
			DaysOverdue:        borrow.DaysOverdue(now),
		}
		if borrow.User != nil {
			row.Username = borrow.User.Username
			row.MemberID = borrow.User.MemberID
		}
		if borrow.Product != nil {
			row.ProductName = borrow.Product.Name
		}
		rows = append(rows, row)
	}
	return rows, nil
}
