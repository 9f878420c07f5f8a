package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mstanton/labtrack/internal/models"
)

var testMemberSeq int

func createTestUser(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()

	testMemberSeq++
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "$2a$10$0123456789012345678901uFakeHashForTestsOnlyAAAAAAAAAA",
		MemberID: fmt.Sprintf("%05d", 10000+testMemberSeq),
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestProduct(t *testing.T, db *gorm.DB, name string, quantity int) *models.Product {
	t.Helper()

	product := &models.Product{
		Name:              name,
		Category:          "Instruments",
		QuantityAvailable: quantity,
		Location:          "Lab Storage",
		Status:            models.ProductAvailable,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func futureDate(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, days)
}
