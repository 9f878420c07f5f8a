package models

import (
	"strings"
	"time"
)

// User describes a platform account. Accounts start inactive and must be
// approved by an administrator before they can sign in.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName string `gorm:"size:50" json:"first_name"`
	LastName  string `gorm:"size:50" json:"last_name"`

	// MemberID is the short numeric identifier handed to users at
	// registration, unique across all accounts.
	MemberID string `gorm:"size:5;uniqueIndex;not null" json:"member_id"`

	Role     Role `gorm:"type:varchar(20);not null;default:'regular'" json:"role"`
	IsActive bool `gorm:"default:false" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at"`
}

// FullName joins the first and last names for display purposes.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Actor converts the user into the explicit actor passed to services.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
