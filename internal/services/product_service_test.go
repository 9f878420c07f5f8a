package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mstanton/labtrack/internal/database/testutil"
	"github.com/mstanton/labtrack/internal/models"
)

func newProductFixture(t *testing.T) (*gorm.DB, *ProductService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewProductService(db)
	require.NoError(t, err)
	return db, svc
}

func TestProductCreateDefaults(t *testing.T) {
	db, svc := newProductFixture(t)
	ctx := context.Background()

	admin := createTestUser(t, db, "admin", models.RoleAdmin)

	product, err := svc.Create(ctx, CreateProductInput{
		Name:        "Oscilloscope",
		Category:    "Instruments",
		Brand:       "Keysight",
		CreatedByID: admin.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 1, product.QuantityAvailable)
	require.Equal(t, "Lab Storage", product.Location)
	require.Equal(t, models.ProductAvailable, product.Status)
	require.NotNil(t, product.CreatedByID)

	_, err = svc.Create(ctx, CreateProductInput{Category: "Instruments"})
	require.Error(t, err)
	_, err = svc.Create(ctx, CreateProductInput{Name: "Probe"})
	require.Error(t, err)
}

func TestProductListSearchAndFilters(t *testing.T) {
	db, svc := newProductFixture(t)
	ctx := context.Background()

	createTestProduct(t, db, "Oscilloscope", 1)
	multimeter := createTestProduct(t, db, "Digital Multimeter", 2)
	require.NoError(t, db.Model(multimeter).Updates(map[string]any{
		"category": "Meters",
		"status":   models.ProductMaintenance,
	}).Error)

	products, total, err := svc.List(ctx, ListProductsOptions{
		Filters: ProductFilters{Query: "multi"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Digital Multimeter", products[0].Name)

	_, total, err = svc.List(ctx, ListProductsOptions{
		Filters: ProductFilters{Category: "Meters"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	_, total, err = svc.List(ctx, ListProductsOptions{
		Filters: ProductFilters{Status: models.ProductMaintenance},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	_, _, err = svc.List(ctx, ListProductsOptions{
		Filters: ProductFilters{Status: models.ProductStatus("bogus")},
	})
	require.Error(t, err)

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Instruments", "Meters"}, categories)
}

func TestProductUpdate(t *testing.T) {
	db, svc := newProductFixture(t)
	ctx := context.Background()

	product := createTestProduct(t, db, "Oscilloscope", 1)

	quantity := 4
	notes := "recalibrated"
	updated, err := svc.Update(ctx, product.ID, UpdateProductInput{
		Quantity: &quantity,
		Notes:    &notes,
	})
	require.NoError(t, err)
	require.Equal(t, 4, updated.QuantityAvailable)
	require.Equal(t, "recalibrated", updated.Notes)

	negative := -1
	_, err = svc.Update(ctx, product.ID, UpdateProductInput{Quantity: &negative})
	require.Error(t, err)
}

func TestProductSetStatusRefusesBorrowed(t *testing.T) {
	db, svc := newProductFixture(t)
	ctx := context.Background()

	product := createTestProduct(t, db, "Oscilloscope", 1)

	updated, err := svc.SetStatus(ctx, product.ID, models.ProductMaintenance)
	require.NoError(t, err)
	require.Equal(t, models.ProductMaintenance, updated.Status)

	// The borrowed state belongs to the loan lifecycle.
	_, err = svc.SetStatus(ctx, product.ID, models.ProductBorrowed)
	require.ErrorIs(t, err, ErrStatusLoanOwned)

	require.NoError(t, db.Model(product).Update("status", models.ProductBorrowed).Error)
	_, err = svc.SetStatus(ctx, product.ID, models.ProductAvailable)
	require.ErrorIs(t, err, ErrStatusLoanOwned)
}

func TestProductDeleteRefusedWhileLoansOpen(t *testing.T) {
	db, svc := newProductFixture(t)
	ctx := context.Background()

	borrower := createTestUser(t, db, "alice", models.RoleRegular)
	product := createTestProduct(t, db, "Oscilloscope", 1)

	notifications, err := NewNotificationService(db)
	require.NoError(t, err)
	loans, err := NewLoanService(db, notifications)
	require.NoError(t, err)

	_, err = loans.Request(ctx, borrower.Actor(), RequestLoanInput{
		ProductID:          product.ID,
		ExpectedReturnDate: futureDate(7),
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, product.ID), ErrProductHasOpenLoans)
}

func TestProductGetByIDMissing(t *testing.T) {
	_, svc := newProductFixture(t)

	_, err := svc.GetByID(context.Background(), "no-such-id")
	require.ErrorIs(t, err, ErrProductNotFound)
}
