package services

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mstanton/labtrack/internal/database/testutil"
	"github.com/mstanton/labtrack/internal/models"
	apperrors "github.com/mstanton/labtrack/pkg/errors"
)

func newUserFixture(t *testing.T) (*gorm.DB, *UserService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	notifications, err := NewNotificationService(db)
	require.NoError(t, err)
	svc, err := NewUserService(db, notifications)
	require.NoError(t, err)
	return db, svc
}

func TestRegisterCreatesPendingAccountWithMemberID(t *testing.T) {
	db, svc := newUserFixture(t)
	ctx := context.Background()

	admin := createTestUser(t, db, "admin", models.RoleAdmin)

	user, err := svc.Register(ctx, RegisterUserInput{
		Username:  "alice",
		Email:     "Alice@Example.com",
		Password:  "s3cret-pass",
		FirstName: "Alice",
		LastName:  "Nguyen",
	})
	require.NoError(t, err)
	require.False(t, user.IsActive)
	require.Equal(t, models.RoleRegular, user.Role)
	require.Equal(t, "alice@example.com", user.Email)
	require.Regexp(t, regexp.MustCompile(`^\d{5}$`), user.MemberID)
	require.NotEqual(t, "s3cret-pass", user.Password)

	var adminInbox []models.Notification
	require.NoError(t, db.Where("recipient_id = ?", admin.ID).Find(&adminInbox).Error)
	require.Len(t, adminInbox, 1)
	require.Equal(t, models.NotifyUserRegistration, adminInbox[0].Type)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	_, svc := newUserFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterUserInput{
		Username: "alice", Email: "alice@example.com", Password: "pass1234",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterUserInput{
		Username: "alice", Email: "other@example.com", Password: "pass1234",
	})
	require.Error(t, err)
	appErr := apperrors.FromError(err)
	require.Equal(t, 400, appErr.StatusCode)
}

func TestAuthenticateFlow(t *testing.T) {
	_, svc := newUserFixture(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterUserInput{
		Username: "alice", Email: "alice@example.com", Password: "pass1234",
	})
	require.NoError(t, err)

	// Pending accounts cannot sign in even with valid credentials.
	_, err = svc.Authenticate(ctx, "alice", "pass1234")
	require.ErrorIs(t, err, apperrors.ErrAccountPending)

	adminUser, err := svc.Create(ctx, CreateUserInput{
		Username: "admin", Email: "admin@example.com", Password: "admin-pass",
		Role: models.RoleAdmin,
	})
	require.NoError(t, err)

	_, err = svc.Activate(ctx, adminUser.Actor(), registered.ID)
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice", "pass1234")
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)

	// Login by email works too.
	_, err = svc.Authenticate(ctx, "alice@example.com", "pass1234")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "alice", "wrong-pass")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "pass1234")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestActivateNotifiesUserAndRequiresPending(t *testing.T) {
	db, svc := newUserFixture(t)
	ctx := context.Background()

	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	registered, err := svc.Register(ctx, RegisterUserInput{
		Username: "alice", Email: "alice@example.com", Password: "pass1234",
	})
	require.NoError(t, err)

	activated, err := svc.Activate(ctx, admin.Actor(), registered.ID)
	require.NoError(t, err)
	require.True(t, activated.IsActive)

	var inbox []models.Notification
	require.NoError(t, db.Where("recipient_id = ?", registered.ID).Find(&inbox).Error)
	require.Len(t, inbox, 1)

	_, err = svc.Activate(ctx, admin.Actor(), registered.ID)
	require.ErrorIs(t, err, ErrUserNotPending)
}

func TestRejectRemovesPendingAccountOnly(t *testing.T) {
	db, svc := newUserFixture(t)
	ctx := context.Background()

	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	registered, err := svc.Register(ctx, RegisterUserInput{
		Username: "alice", Email: "alice@example.com", Password: "pass1234",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Reject(ctx, admin.Actor(), registered.ID))

	_, err = svc.GetByID(ctx, registered.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	// Active accounts cannot be rejected, only deactivated.
	active := createTestUser(t, db, "bob", models.RoleRegular)
	require.ErrorIs(t, svc.Reject(ctx, admin.Actor(), active.ID), ErrUserNotPending)
}

func TestAdminCannotActOnOwnAccount(t *testing.T) {
	db, svc := newUserFixture(t)
	ctx := context.Background()

	admin := createTestUser(t, db, "admin", models.RoleAdmin)

	_, err := svc.Deactivate(ctx, admin.Actor(), admin.ID)
	require.ErrorIs(t, err, ErrSelfAction)

	require.ErrorIs(t, svc.Delete(ctx, admin.Actor(), admin.ID), ErrSelfAction)
	require.ErrorIs(t, svc.Reject(ctx, admin.Actor(), admin.ID), ErrSelfAction)
}

func TestDeleteRefusedWhileLoansOpen(t *testing.T) {
	db, svc := newUserFixture(t)
	ctx := context.Background()

	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	borrower := createTestUser(t, db, "alice", models.RoleRegular)
	product := createTestProduct(t, db, "Oscilloscope", 1)

	notifications, err := NewNotificationService(db)
	require.NoError(t, err)
	loans, err := NewLoanService(db, notifications)
	require.NoError(t, err)

	borrow, err := loans.Request(ctx, borrower.Actor(), RequestLoanInput{
		ProductID:          product.ID,
		ExpectedReturnDate: futureDate(7),
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, admin.Actor(), borrower.ID), ErrUserHasOpenLoans)

	_, err = loans.Decide(ctx, admin.Actor(), borrow.ID, DecisionReject)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin.Actor(), borrower.ID))
}

func TestUserServiceGuardsRequireAdmin(t *testing.T) {
	db, svc := newUserFixture(t)
	ctx := context.Background()

	regular := createTestUser(t, db, "alice", models.RoleRegular)
	other := createTestUser(t, db, "bob", models.RoleRegular)

	_, err := svc.Activate(ctx, regular.Actor(), other.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = svc.Deactivate(ctx, regular.Actor(), other.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, regular.Actor(), other.ID), apperrors.ErrForbidden)
}

func TestListUsersFilters(t *testing.T) {
	db, svc := newUserFixture(t)
	ctx := context.Background()

	createTestUser(t, db, "admin", models.RoleAdmin)
	alice := createTestUser(t, db, "alice", models.RoleRegular)
	require.NoError(t, db.Model(alice).Update("is_active", false).Error)

	inactive := false
	users, total, err := svc.List(ctx, ListUsersOptions{
		Filters: UserFilters{IsActive: &inactive},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "alice", users[0].Username)

	users, total, err = svc.List(ctx, ListUsersOptions{
		Filters: UserFilters{Role: models.RoleAdmin},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "admin", users[0].Username)

	_, total, err = svc.List(ctx, ListUsersOptions{
		Filters: UserFilters{Query: "ali"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	_, svc := newUserFixture(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "old-pass-123",
	})
	require.NoError(t, err)

	require.ErrorIs(t,
		svc.ChangePassword(ctx, user.ID, "wrong", "new-pass-456"),
		apperrors.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "old-pass-123", "new-pass-456"))

	_, err = svc.Authenticate(ctx, "alice", "new-pass-456")
	require.NoError(t, err)
}
