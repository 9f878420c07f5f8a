package models

import "time"

// LoanHistory is the immutable archival record written when a loan is
// returned. Rows are append-only: they are never updated or deleted, even
// when an administrator undoes a return.
type LoanHistory struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	ProductID string   `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	BorrowDate time.Time  `gorm:"not null" json:"borrow_date"`
	ReturnDate *time.Time `json:"return_date"`

	Status string `gorm:"size:20;not null" json:"status"`
}
