package models

import "time"

// BorrowStatus enumerates the stored states of a loan record.
//
// "overdue" is never persisted: an overdue loan is an active loan whose
// expected return date has passed, and is always derived by query or via
// EffectiveStatus. The constant exists so listings and reports can present
// the derived classification with the same vocabulary.
type BorrowStatus string

const (
	BorrowPending  BorrowStatus = "pending"
	BorrowApproved BorrowStatus = "approved"
	BorrowActive   BorrowStatus = "active"
	BorrowReturned BorrowStatus = "returned"
	BorrowRejected BorrowStatus = "rejected"
	BorrowOverdue  BorrowStatus = "overdue"
)

// Open reports whether the status counts against a user's outstanding
// requests for a product. A user may hold at most one open loan per product.
func (s BorrowStatus) Open() bool {
	return s == BorrowPending || s == BorrowApproved || s == BorrowActive
}

// Borrow ties one user to one product for a bounded lending period. Records
// are never deleted; terminal states are kept as an audit trail.
type Borrow struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	ProductID string   `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	Status BorrowStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	BorrowDate         time.Time  `gorm:"not null" json:"borrow_date"`
	ExpectedReturnDate time.Time  `gorm:"not null" json:"expected_return_date"`
	ActualReturnDate   *time.Time `json:"actual_return_date"`

	Notes string `gorm:"type:text" json:"notes"`

	// DecidedByID records the administrator who approved or rejected the
	// request.
	DecidedByID *string `gorm:"type:uuid" json:"decided_by_id"`
	DecidedBy   *User   `gorm:"foreignKey:DecidedByID" json:"decided_by,omitempty"`
}

// IsOverdue reports whether the loan is active and past its expected return
// date as of now.
func (b *Borrow) IsOverdue(now time.Time) bool {
	return b.Status == BorrowActive && b.ExpectedReturnDate.Before(truncateToDay(now))
}

// DaysOverdue returns how many whole days the loan is past due, or zero.
func (b *Borrow) DaysOverdue(now time.Time) int {
	if !b.IsOverdue(now) {
		return 0
	}
	return int(truncateToDay(now).Sub(truncateToDay(b.ExpectedReturnDate)).Hours() / 24)
}

// EffectiveStatus returns the stored status, substituting the derived
// overdue classification for late active loans.
func (b *Borrow) EffectiveStatus(now time.Time) BorrowStatus {
	if b.IsOverdue(now) {
		return BorrowOverdue
	}
	return b.Status
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
