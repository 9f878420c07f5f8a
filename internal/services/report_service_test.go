package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mstanton/labtrack/internal/cache"
	"github.com/mstanton/labtrack/internal/database/testutil"
	"github.com/mstanton/labtrack/internal/models"
)

func seedReportData(t *testing.T, db *gorm.DB) (*models.User, *models.Borrow) {
	t.Helper()

	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	borrower := createTestUser(t, db, "alice", models.RoleRegular)
	scope := createTestProduct(t, db, "Oscilloscope", 2)
	meter := createTestProduct(t, db, "Multimeter", 1)
	require.NoError(t, db.Model(meter).Update("category", "Meters").Error)

	notifications, err := NewNotificationService(db)
	require.NoError(t, err)
	loans, err := NewLoanService(db, notifications)
	require.NoError(t, err)
	ctx := context.Background()

	borrow, err := loans.Request(ctx, borrower.Actor(), RequestLoanInput{
		ProductID:          scope.ID,
		ExpectedReturnDate: futureDate(7),
	})
	require.NoError(t, err)
	_, err = loans.Decide(ctx, admin.Actor(), borrow.ID, DecisionApprove)
	require.NoError(t, err)

	return borrower, borrow
}

func TestReportSummaryCounts(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedReportData(t, db)

	svc, err := NewReportService(db, nil)
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, summary.TotalProducts)
	require.EqualValues(t, 2, summary.TotalUsers)
	require.EqualValues(t, 1, summary.TotalBorrows)
	require.EqualValues(t, 1, summary.ActiveLoans)
	require.Zero(t, summary.PendingRequests)
	require.Zero(t, summary.OverdueLoans)
}

func TestReportSummaryServedFromCache(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedReportData(t, db)

	store := cache.NewMemoryStore()
	svc, err := NewReportService(db, store)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.Summary(ctx)
	require.NoError(t, err)

	// New activity is invisible until the cache entry expires or is dropped.
	createTestProduct(t, db, "Signal Generator", 1)

	cached, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, first.TotalProducts, cached.TotalProducts)

	svc.InvalidateSummary(ctx)

	fresh, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, fresh.TotalProducts)
}

func TestReportCategoryDistributionAndPopularProducts(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedReportData(t, db)

	svc, err := NewReportService(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	categories, err := svc.CategoryDistribution(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)

	popular, err := svc.PopularProducts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	require.Equal(t, "Oscilloscope", popular[0].Name)
	require.EqualValues(t, 1, popular[0].BorrowCount)
}

func TestReportOverdueLoans(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	borrower, borrow := seedReportData(t, db)

	svc, err := NewReportService(db, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().AddDate(0, 1, 0) }

	rows, err := svc.OverdueLoans(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, borrow.ID, rows[0].BorrowID)
	require.Equal(t, borrower.Username, rows[0].Username)
	require.Equal(t, borrower.MemberID, rows[0].MemberID)
	require.Positive(t, rows[0].DaysOverdue)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.OverdueLoans)
}
