package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mstanton/labtrack/internal/models"
	"github.com/mstanton/labtrack/pkg/crypto"
	apperrors "github.com/mstanton/labtrack/pkg/errors"
	"github.com/mstanton/labtrack/pkg/metrics"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrSelfAction guards administrators from deactivating, rejecting or
	// deleting their own account.
	ErrSelfAction = apperrors.New("USER_SELF_ACTION", "You cannot perform this action on your own account", http.StatusBadRequest)
	// ErrUserHasOpenLoans blocks deletion of accounts with outstanding loans.
	ErrUserHasOpenLoans = apperrors.New("USER_HAS_OPEN_LOANS", "User still has open borrow records", http.StatusConflict)
	// ErrUserNotPending is returned when activating or rejecting an account
	// that already left the pending state.
	ErrUserNotPending = apperrors.New("USER_NOT_PENDING", "User account is not awaiting approval", http.StatusConflict)
)

const memberIDAttempts = 10

// RegisterUserInput describes a self-service registration request.
type RegisterUserInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// CreateUserInput describes an administrator-created account.
type CreateUserInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.Role
	IsActive  *bool
}

// UserFilters captures listing filters.
type UserFilters struct {
	IsActive *bool
	Role     models.Role
	Query    string
}

// ListUsersOptions controls pagination for user listing.
type ListUsersOptions struct {
	Page     int
	PageSize int
	Filters  UserFilters
}

// UserService manages account lifecycle: registration, the approval gate,
// authentication and password management.
type UserService struct {
	db            *gorm.DB
	notifications *NotificationService
	now           func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, notifications *NotificationService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{
		db:            db,
		notifications: notifications,
		now:           time.Now,
	}, nil
}

// Register creates an inactive account awaiting administrator approval and
// assigns a unique five digit member id.
func (s *UserService) Register(ctx context.Context, input RegisterUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      models.RoleRegular,
		IsActive:  false,
	}

	if err := s.createWithMemberID(ctx, user); err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("username or email already exists")
		}
		return nil, fmt.Errorf("user service: register user: %w", err)
	}

	notifyAdmins(s.notifications, ctx, CreateNotificationInput{
		RelatedUserID: user.ID,
		Type:          models.NotifyUserRegistration,
		Priority:      models.PriorityMedium,
		Title:         "New registration awaiting approval",
		Message:       fmt.Sprintf("%s (%s) registered and is waiting for account approval.", user.Username, user.Email),
	})

	return user, nil
}

// createWithMemberID inserts the user, retrying with fresh member ids when a
// generated one collides with an existing account.
func (s *UserService) createWithMemberID(ctx context.Context, user *models.User) error {
	var lastErr error
	for attempt := 0; attempt < memberIDAttempts; attempt++ {
		user.ID = ""
		user.MemberID = fmt.Sprintf("%05d", 10000+rand.Intn(90000))

		err := s.db.WithContext(ctx).Create(user).Error
		if err == nil {
			return nil
		}
		lastErr = err
		if !isUniqueConstraintError(err) {
			return err
		}

		var count int64
		if countErr := s.db.WithContext(ctx).Model(&models.User{}).
			Where("member_id = ?", user.MemberID).
			Count(&count).Error; countErr != nil {
			return countErr
		}
		if count == 0 {
			// The collision was on username or email, not the member id.
			return err
		}
	}
	return lastErr
}

// Create provisions an account on behalf of an administrator. Unlike
// Register, the account is active immediately unless stated otherwise.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	role := input.Role
	if role == "" {
		role = models.RoleRegular
	}
	if !role.Valid() {
		return nil, apperrors.NewBadRequest("unknown role")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      role,
		IsActive:  true,
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.createWithMemberID(ctx, user); err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("username or email already exists")
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies credentials and records the login time. Accounts that
// have not been approved yet are reported distinctly from bad credentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", username, strings.ToLower(username)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("pending").Inc()
		return nil, apperrors.ErrAccountPending
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: record login: %w", err)
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// List retrieves users matching the supplied filters with pagination.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if opts.Filters.IsActive != nil {
		query = query.Where("is_active = ?", *opts.Filters.IsActive)
	}
	if opts.Filters.Role != "" {
		query = query.Where("role = ?", opts.Filters.Role)
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR member_id LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	return users, total, nil
}

// Activate approves a pending account so the user can sign in.
func (s *UserService) Activate(ctx context.Context, actor models.Actor, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	if !actor.Role.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive {
		return nil, ErrUserNotPending
	}

	if err := s.db.WithContext(ctx).Model(user).Update("is_active", true).Error; err != nil {
		return nil, fmt.Errorf("user service: activate user: %w", err)
	}
	user.IsActive = true

	notify(s.notifications, ctx, CreateNotificationInput{
		RecipientID:   user.ID,
		RelatedUserID: actor.ID,
		Type:          models.NotifyGeneral,
		Priority:      models.PriorityMedium,
		Title:         "Account approved",
		Message:       "Your account has been approved. You can now sign in and request equipment.",
	})

	return user, nil
}

// Reject removes a pending registration. Only accounts that never went
// active can be rejected.
func (s *UserService) Reject(ctx context.Context, actor models.Actor, id string) error {
	ctx = ensureContext(ctx)

	if !actor.Role.IsAdmin() {
		return apperrors.ErrForbidden
	}
	if actor.ID == id {
		return ErrSelfAction
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.IsActive {
		return ErrUserNotPending
	}

	if err := s.db.WithContext(ctx).Delete(user).Error; err != nil {
		return fmt.Errorf("user service: reject user: %w", err)
	}
	return nil
}

// Deactivate suspends an active account. Administrators cannot suspend
// themselves.
func (s *UserService) Deactivate(ctx context.Context, actor models.Actor, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	if !actor.Role.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	if actor.ID == id {
		return nil, ErrSelfAction
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("is_active", false).Error; err != nil {
		return nil, fmt.Errorf("user service: deactivate user: %w", err)
	}
	user.IsActive = false
	return user, nil
}

// Delete removes an account. Accounts holding open borrow records cannot be
// deleted, and administrators cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string) error {
	ctx = ensureContext(ctx)

	if !actor.Role.IsAdmin() {
		return apperrors.ErrForbidden
	}
	if actor.ID == id {
		return ErrSelfAction
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var open int64
	if err := s.db.WithContext(ctx).Model(&models.Borrow{}).
		Where("user_id = ? AND status IN ?", user.ID, openBorrowStatuses()).
		Count(&open).Error; err != nil {
		return fmt.Errorf("user service: count open borrows: %w", err)
	}
	if open > 0 {
		return ErrUserHasOpenLoans
	}

	if err := s.db.WithContext(ctx).Delete(user).Error; err != nil {
		return fmt.Errorf("user service: delete user: %w", err)
	}
	return nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewBadRequest("new password is required")
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(user.Password, currentPassword) {
		return apperrors.ErrInvalidCredentials
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("user service: hash new password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("user service: change password: %w", err)
	}
	return nil
}

func openBorrowStatuses() []models.BorrowStatus {
	return []models.BorrowStatus{models.BorrowPending, models.BorrowApproved, models.BorrowActive}
}
