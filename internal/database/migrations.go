package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mstanton/labtrack/internal/models"
	"github.com/mstanton/labtrack/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Borrow{},
		&models.Notification{},
		&models.LoanHistory{},
	)
}

// BootstrapAdmin describes the initial administrator account created on an
// empty database.
type BootstrapAdmin struct {
	Username string
	Email    string
	Password string
	MemberID string
}

// EnsureAdmin creates the bootstrap administrator when no admin account
// exists yet. It is a no-op when an admin is already present or when the
// configuration is incomplete.
func EnsureAdmin(db *gorm.DB, cfg BootstrapAdmin) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	username := strings.TrimSpace(cfg.Username)
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if username == "" || email == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	hashed, err := crypto.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	memberID := strings.TrimSpace(cfg.MemberID)
	if memberID == "" {
		memberID = "10000"
	}

	admin := models.User{
		Username: username,
		Email:    email,
		Password: hashed,
		MemberID: memberID,
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	return nil
}
