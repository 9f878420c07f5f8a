package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mstanton/labtrack/internal/models"
	apperrors "github.com/mstanton/labtrack/pkg/errors"
	"github.com/mstanton/labtrack/pkg/metrics"
)

// extensionPeriod is added to the expected return date on each extension.
const extensionPeriod = 7 * 24 * time.Hour

var (
	// ErrBorrowNotFound indicates the requested borrow record does not exist.
	ErrBorrowNotFound = apperrors.New("BORROW_NOT_FOUND", "Borrow record not found", http.StatusNotFound)
	// ErrProductUnavailable rejects requests for equipment that is not
	// currently available.
	ErrProductUnavailable = apperrors.New("PRODUCT_UNAVAILABLE", "Item is not available for borrowing", http.StatusConflict)
	// ErrDuplicateRequest rejects a second open request for the same product.
	ErrDuplicateRequest = apperrors.New("BORROW_DUPLICATE", "You already have an open request for this item", http.StatusConflict)
	// ErrInsufficientQuantity rejects approval when no units remain.
	ErrInsufficientQuantity = apperrors.New("BORROW_NO_QUANTITY", "Insufficient quantity available", http.StatusConflict)
	// ErrNotPending rejects decisions on requests that already left the
	// pending state.
	ErrNotPending = apperrors.New("BORROW_NOT_PENDING", "Borrow request has already been decided", http.StatusConflict)
	// ErrNotActive rejects returns and extensions on loans that are not
	// currently out.
	ErrNotActive = apperrors.New("BORROW_NOT_ACTIVE", "Borrow record is not active", http.StatusConflict)
	// ErrNotReturned rejects undo on loans that were never returned.
	ErrNotReturned = apperrors.New("BORROW_NOT_RETURNED", "Borrow record is not returned", http.StatusConflict)
	// ErrPastReturnDate rejects requested return dates in the past.
	ErrPastReturnDate = apperrors.NewBadRequest("expected return date cannot be in the past")
)

// Decision names the two outcomes of reviewing a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// RequestLoanInput describes a borrow request.
type RequestLoanInput struct {
	ProductID          string
	ExpectedReturnDate time.Time
	Notes              string
}

// LoanFilters captures listing filters. Status accepts the derived overdue
// classification in addition to the stored states.
type LoanFilters struct {
	UserID    string
	ProductID string
	Status    models.BorrowStatus
}

// ListLoansOptions controls pagination for loan listing.
type ListLoansOptions struct {
	Page     int
	PageSize int
	Filters  LoanFilters
}

// BorrowDTO augments a borrow record with its derived classification.
type BorrowDTO struct {
	models.Borrow
	EffectiveStatus models.BorrowStatus `json:"effective_status"`
	DaysOverdue     int                 `json:"days_overdue"`
}

// LoanService coordinates the borrow lifecycle and keeps product
// availability synchronised with it.
type LoanService struct {
	db            *gorm.DB
	notifications *NotificationService
	now           func() time.Time
}

// NewLoanService constructs a LoanService instance.
func NewLoanService(db *gorm.DB, notifications *NotificationService) (*LoanService, error) {
	if db == nil {
		return nil, errors.New("loan service: db is required")
	}
	return &LoanService{
		db:            db,
		notifications: notifications,
		now:           time.Now,
	}, nil
}

// Request files a pending borrow request for the acting user. The product
// must be available and the user must not already hold an open request for it.
func (s *LoanService) Request(ctx context.Context, actor models.Actor, input RequestLoanInput) (*models.Borrow, error) {
	ctx = ensureContext(ctx)

	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return nil, apperrors.NewBadRequest("product id is required")
	}
	if input.ExpectedReturnDate.IsZero() {
		return nil, apperrors.NewBadRequest("expected return date is required")
	}

	now := s.now()
	if startOfDay(input.ExpectedReturnDate).Before(startOfDay(now)) {
		return nil, ErrPastReturnDate
	}

	var borrow *models.Borrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&product, "id = ?", productID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("loan service: load product: %w", err)
		}

		if product.Status != models.ProductAvailable {
			return ErrProductUnavailable
		}

		var open int64
		if err := tx.Model(&models.Borrow{}).
			Where("user_id = ? AND product_id = ? AND status IN ?",
				actor.ID, product.ID, openBorrowStatuses()).
			Count(&open).Error; err != nil {
			return fmt.Errorf("loan service: count open requests: %w", err)
		}
		if open > 0 {
			return ErrDuplicateRequest
		}

		borrow = &models.Borrow{
			UserID:             actor.ID,
			ProductID:          product.ID,
			Status:             models.BorrowPending,
			BorrowDate:         startOfDay(now),
			ExpectedReturnDate: startOfDay(input.ExpectedReturnDate),
			Notes:              strings.TrimSpace(input.Notes),
		}
		if err := tx.Create(borrow).Error; err != nil {
			return fmt.Errorf("loan service: create borrow: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.LoanTransitions.WithLabelValues("request", "error").Inc()
		return nil, err
	}
	metrics.LoanTransitions.WithLabelValues("request", "success").Inc()

	notifyAdmins(s.notifications, ctx, CreateNotificationInput{
		RelatedUserID: actor.ID,
		BorrowID:      borrow.ID,
		Type:          models.NotifyBorrowRequest,
		Priority:      models.PriorityMedium,
		Title:         "New borrow request",
		Message:       "A borrow request is waiting for review.",
	})

	return borrow, nil
}

// Decide approves or rejects a pending request. Approval moves the loan to
// active and takes one unit of the product; rejection leaves the product
// untouched.
func (s *LoanService) Decide(ctx context.Context, actor models.Actor, borrowID string, decision Decision) (*models.Borrow, error) {
	ctx = ensureContext(ctx)

	if !actor.CanDecideLoans() {
		return nil, apperrors.ErrForbidden
	}
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, apperrors.NewBadRequest("decision must be approve or reject")
	}

	var borrow *models.Borrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := lockBorrow(tx, borrowID)
		if err != nil {
			return err
		}
		borrow = loaded

		if borrow.Status != models.BorrowPending {
			return ErrNotPending
		}

		adminID := actor.ID
		if decision == DecisionReject {
			borrow.Status = models.BorrowRejected
			borrow.DecidedByID = &adminID
			return tx.Model(borrow).Updates(map[string]any{
				"status":        models.BorrowRejected,
				"decided_by_id": adminID,
			}).Error
		}

		var product models.Product
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&product, "id = ?", borrow.ProductID).Error
		if err != nil {
			return fmt.Errorf("loan service: load product: %w", err)
		}
		if product.QuantityAvailable <= 0 {
			return ErrInsufficientQuantity
		}

		borrow.Status = models.BorrowActive
		borrow.DecidedByID = &adminID
		if err := tx.Model(borrow).Updates(map[string]any{
			"status":        models.BorrowActive,
			"decided_by_id": adminID,
		}).Error; err != nil {
			return fmt.Errorf("loan service: activate borrow: %w", err)
		}

		return tx.Model(&product).Updates(map[string]any{
			"quantity_available": gorm.Expr("quantity_available - 1"),
			"status":             models.ProductBorrowed,
		}).Error
	})
	if err != nil {
		metrics.LoanTransitions.WithLabelValues(string(decision), "error").Inc()
		return nil, err
	}
	metrics.LoanTransitions.WithLabelValues(string(decision), "success").Inc()

	if decision == DecisionApprove {
		notify(s.notifications, ctx, CreateNotificationInput{
			RecipientID:   borrow.UserID,
			RelatedUserID: actor.ID,
			BorrowID:      borrow.ID,
			Type:          models.NotifyBorrowApproved,
			Priority:      models.PriorityMedium,
			Title:         "Borrow request approved",
			Message:       fmt.Sprintf("Your request was approved. Please return the item by %s.", borrow.ExpectedReturnDate.Format(dateLayout)),
		})
	} else {
		notify(s.notifications, ctx, CreateNotificationInput{
			RecipientID:   borrow.UserID,
			RelatedUserID: actor.ID,
			BorrowID:      borrow.ID,
			Type:          models.NotifyBorrowRejected,
			Priority:      models.PriorityMedium,
			Title:         "Borrow request rejected",
			Message:       "Your borrow request was rejected.",
		})
	}

	return borrow, nil
}

// Return closes an active loan, restores product availability and archives
// the loan in the history ledger.
func (s *LoanService) Return(ctx context.Context, actor models.Actor, borrowID string) (*models.Borrow, error) {
	ctx = ensureContext(ctx)

	var borrow *models.Borrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := lockBorrow(tx, borrowID)
		if err != nil {
			return err
		}
		borrow = loaded

		if !actor.CanActOn(borrow.UserID) {
			return apperrors.ErrForbidden
		}
		if borrow.Status != models.BorrowActive {
			return ErrNotActive
		}

		returnedAt := startOfDay(s.now())
		borrow.Status = models.BorrowReturned
		borrow.ActualReturnDate = &returnedAt
		if err := tx.Model(borrow).Updates(map[string]any{
			"status":             models.BorrowReturned,
			"actual_return_date": returnedAt,
		}).Error; err != nil {
			return fmt.Errorf("loan service: close borrow: %w", err)
		}

		var product models.Product
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&product, "id = ?", borrow.ProductID).Error
		if err != nil {
			return fmt.Errorf("loan service: load product: %w", err)
		}

		var stillActive int64
		if err := tx.Model(&models.Borrow{}).
			Where("product_id = ? AND status = ?", product.ID, models.BorrowActive).
			Count(&stillActive).Error; err != nil {
			return fmt.Errorf("loan service: count active borrows: %w", err)
		}

		updates := map[string]any{
			"quantity_available": gorm.Expr("quantity_available + 1"),
		}
		if stillActive == 0 && product.Status == models.ProductBorrowed {
			updates["status"] = models.ProductAvailable
		}
		if err := tx.Model(&product).Updates(updates).Error; err != nil {
			return fmt.Errorf("loan service: restore product: %w", err)
		}

		history := models.LoanHistory{
			UserID:     borrow.UserID,
			ProductID:  borrow.ProductID,
			BorrowDate: borrow.BorrowDate,
			ReturnDate: &returnedAt,
			Status:     string(models.BorrowReturned),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("loan service: archive loan: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.LoanTransitions.WithLabelValues("return", "error").Inc()
		return nil, err
	}
	metrics.LoanTransitions.WithLabelValues("return", "success").Inc()

	notify(s.notifications, ctx, CreateNotificationInput{
		RecipientID:   borrow.UserID,
		RelatedUserID: actor.ID,
		BorrowID:      borrow.ID,
		Type:          models.NotifyItemReturned,
		Priority:      models.PriorityLow,
		Title:         "Item returned",
		Message:       "The returned item has been checked back into the inventory.",
	})

	return borrow, nil
}

// Extend pushes the expected return date of an active loan out by one week.
func (s *LoanService) Extend(ctx context.Context, actor models.Actor, borrowID string) (*models.Borrow, error) {
	ctx = ensureContext(ctx)

	var borrow *models.Borrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := lockBorrow(tx, borrowID)
		if err != nil {
			return err
		}
		borrow = loaded

		if !actor.CanActOn(borrow.UserID) {
			return apperrors.ErrForbidden
		}
		if borrow.Status != models.BorrowActive {
			return ErrNotActive
		}

		extended := borrow.ExpectedReturnDate.Add(extensionPeriod)
		borrow.ExpectedReturnDate = extended
		return tx.Model(borrow).Update("expected_return_date", extended).Error
	})
	if err != nil {
		metrics.LoanTransitions.WithLabelValues("extend", "error").Inc()
		return nil, err
	}
	metrics.LoanTransitions.WithLabelValues("extend", "success").Inc()

	notify(s.notifications, ctx, CreateNotificationInput{
		RecipientID:   borrow.UserID,
		RelatedUserID: actor.ID,
		BorrowID:      borrow.ID,
		Type:          models.NotifyGeneral,
		Priority:      models.PriorityLow,
		Title:         "Loan extended",
		Message:       fmt.Sprintf("The loan was extended. New return date: %s.", borrow.ExpectedReturnDate.Format(dateLayout)),
	})

	return borrow, nil
}

// UndoReturn reverses a mistaken return. The loan becomes active again and
// the unit is taken back out of the inventory. History rows written by the
// original return are kept.
func (s *LoanService) UndoReturn(ctx context.Context, actor models.Actor, borrowID string) (*models.Borrow, error) {
	ctx = ensureContext(ctx)

	if !actor.CanDecideLoans() {
		return nil, apperrors.ErrForbidden
	}

	var borrow *models.Borrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := lockBorrow(tx, borrowID)
		if err != nil {
			return err
		}
		borrow = loaded

		if borrow.Status != models.BorrowReturned {
			return ErrNotReturned
		}

		var product models.Product
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&product, "id = ?", borrow.ProductID).Error
		if err != nil {
			return fmt.Errorf("loan service: load product: %w", err)
		}
		if product.QuantityAvailable <= 0 {
			return ErrInsufficientQuantity
		}

		borrow.Status = models.BorrowActive
		borrow.ActualReturnDate = nil
		if err := tx.Model(borrow).Updates(map[string]any{
			"status":             models.BorrowActive,
			"actual_return_date": nil,
		}).Error; err != nil {
			return fmt.Errorf("loan service: reopen borrow: %w", err)
		}

		return tx.Model(&product).Updates(map[string]any{
			"quantity_available": gorm.Expr("quantity_available - 1"),
			"status":             models.ProductBorrowed,
		}).Error
	})
	if err != nil {
		metrics.LoanTransitions.WithLabelValues("undo_return", "error").Inc()
		return nil, err
	}
	metrics.LoanTransitions.WithLabelValues("undo_return", "success").Inc()

	notify(s.notifications, ctx, CreateNotificationInput{
		RecipientID:   borrow.UserID,
		RelatedUserID: actor.ID,
		BorrowID:      borrow.ID,
		Type:          models.NotifyGeneral,
		Priority:      models.PriorityMedium,
		Title:         "Return undone",
		Message:       "An administrator reopened this loan. The item is checked out to you again.",
	})

	return borrow, nil
}

// GetByID loads a borrow record visible to the actor.
func (s *LoanService) GetByID(ctx context.Context, actor models.Actor, id string) (*BorrowDTO, error) {
	ctx = ensureContext(ctx)

	var borrow models.Borrow
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Product").
		First(&borrow, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBorrowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loan service: get borrow: %w", err)
	}

	if !actor.CanActOn(borrow.UserID) {
		return nil, apperrors.ErrForbidden
	}

	dto := s.toDTO(borrow)
	return &dto, nil
}

// List retrieves borrow records matching the supplied filters. Regular users
// only ever see their own records; the overdue filter selects late active
// loans.
func (s *LoanService) List(ctx context.Context, actor models.Actor, opts ListLoansOptions) ([]BorrowDTO, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Borrow{})

	if actor.Role.IsAdmin() {
		if userID := strings.TrimSpace(opts.Filters.UserID); userID != "" {
			query = query.Where("user_id = ?", userID)
		}
	} else {
		query = query.Where("user_id = ?", actor.ID)
	}
	if productID := strings.TrimSpace(opts.Filters.ProductID); productID != "" {
		query = query.Where("product_id = ?", productID)
	}

	switch opts.Filters.Status {
	case "":
	case models.BorrowOverdue:
		query = query.Scopes(overdueScope(s.now()))
	default:
		query = query.Where("status = ?", opts.Filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("loan service: count borrows: %w", err)
	}

	var rows []models.Borrow
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Preload("User").
		Preload("Product").
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("loan service: list borrows: %w", err)
	}

	dtos := make([]BorrowDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, s.toDTO(row))
	}
	return dtos, total, nil
}

// ListOverdue returns every late active loan, oldest due date first.
func (s *LoanService) ListOverdue(ctx context.Context) ([]models.Borrow, error) {
	ctx = ensureContext(ctx)

	var rows []models.Borrow
	if err := s.db.WithContext(ctx).
		Scopes(overdueScope(s.now())).
		Order("expected_return_date ASC").
		Preload("User").
		Preload("Product").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loan service: list overdue: %w", err)
	}
	return rows, nil
}

// ListDueWithin returns active loans whose return date falls inside the next
// N days, the feed for return reminders.
func (s *LoanService) ListDueWithin(ctx context.Context, days int) ([]models.Borrow, error) {
	ctx = ensureContext(ctx)

	if days < 0 {
		days = 0
	}
	today := startOfDay(s.now())
	horizon := today.AddDate(0, 0, days)

	var rows []models.Borrow
	if err := s.db.WithContext(ctx).
		Where("status = ? AND expected_return_date >= ? AND expected_return_date <= ?",
			models.BorrowActive, today, horizon).
		Order("expected_return_date ASC").
		Preload("User").
		Preload("Product").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loan service: list due: %w", err)
	}
	return rows, nil
}

// ListHistory returns archived loan records. Regular users only see their own.
func (s *LoanService) ListHistory(ctx context.Context, actor models.Actor, page, pageSize int) ([]models.LoanHistory, int64, error) {
	ctx = ensureContext(ctx)

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	query := s.db.WithContext(ctx).Model(&models.LoanHistory{})
	if !actor.Role.IsAdmin() {
		query = query.Where("user_id = ?", actor.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("loan service: count history: %w", err)
	}

	var rows []models.LoanHistory
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Preload("User").
		Preload("Product").
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("loan service: list history: %w", err)
	}
	return rows, total, nil
}

func (s *LoanService) toDTO(borrow models.Borrow) BorrowDTO {
	now := s.now()
	return BorrowDTO{
		Borrow:          borrow,
		EffectiveStatus: borrow.EffectiveStatus(now),
		DaysOverdue:     borrow.DaysOverdue(now),
	}
}

// overdueScope is the canonical overdue condition. Overdue is derived: the
// stored status stays active while the expected return date has passed.
func overdueScope(now time.Time) func(*gorm.DB) *gorm.DB {
	today := startOfDay(now)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ? AND expected_return_date < ?", models.BorrowActive, today)
	}
}

func lockBorrow(tx *gorm.DB, borrowID string) (*models.Borrow, error) {
	var borrow models.Borrow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&borrow, "id = ?", strings.TrimSpace(borrowID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBorrowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loan service: load borrow: %w", err)
	}
	return &borrow, nil
}
