package models

import "time"

// NotificationType classifies why a notification was raised.
type NotificationType string

const (
	NotifyUserRegistration NotificationType = "user_registration"
	NotifyBorrowRequest    NotificationType = "borrow_request"
	NotifyBorrowApproved   NotificationType = "borrow_approved"
	NotifyBorrowRejected   NotificationType = "borrow_rejected"
	NotifyReturnReminder   NotificationType = "return_reminder"
	NotifyOverdueAlert     NotificationType = "overdue_alert"
	NotifyItemReturned     NotificationType = "item_returned"
	NotifyGeneral          NotificationType = "general"
)

// NotificationPriority ranks how urgently a notification should be surfaced.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Notification represents an in-app message for a user. Notifications are
// created as side effects of lifecycle transitions and only ever mutated by
// marking them read.
type Notification struct {
	BaseModel

	RecipientID string `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Recipient   *User  `gorm:"foreignKey:RecipientID" json:"-"`

	// RelatedUserID points at the user whose action triggered the message,
	// e.g. the requester on a borrow_request sent to admins.
	RelatedUserID *string `gorm:"type:uuid" json:"related_user_id"`

	BorrowID *string `gorm:"type:uuid;index" json:"borrow_id"`

	Type     NotificationType     `gorm:"type:varchar(30);not null;default:'general'" json:"type"`
	Priority NotificationPriority `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`

	Title   string `gorm:"size:200;not null" json:"title"`
	Message string `gorm:"type:text;not null" json:"message"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
