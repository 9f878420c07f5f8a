package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mstanton/labtrack/internal/models"
	"github.com/mstanton/labtrack/internal/services"
	"github.com/mstanton/labtrack/pkg/logger"
	"github.com/mstanton/labtrack/pkg/mail"
	"github.com/mstanton/labtrack/pkg/metrics"
)

const (
	defaultSweepSpec     = "0 8 * * *"
	defaultDaysBeforeDue = 1
)

// Reminder runs the daily loan sweep: it warns borrowers shortly before their
// return date and raises overdue alerts for loans past it. Each borrow gets at
// most one notification of a given type per day.
type Reminder struct {
	db            *gorm.DB
	loans         *services.LoanService
	notifications *services.NotificationService
	mailer        mail.Mailer
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger
	schedule      string
	daysBeforeDue int
}

// Option customises the Reminder.
type Option func(*Reminder)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Reminder) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and due-date comparisons.
func WithNow(now func() time.Time) Option {
	return func(r *Reminder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the daily sweep.
func WithSchedule(spec string) Option {
	return func(r *Reminder) {
		if spec != "" {
			r.schedule = spec
		}
	}
}

// WithDaysBeforeDue adjusts how many days ahead of the return date borrowers
// are reminded.
func WithDaysBeforeDue(days int) Option {
	return func(r *Reminder) {
		if days >= 0 {
			r.daysBeforeDue = days
		}
	}
}

// WithMailer enables best-effort email copies of reminders and alerts.
func WithMailer(m mail.Mailer) Option {
	return func(r *Reminder) {
		r.mailer = m
	}
}

// NewReminder constructs a Reminder with sensible defaults.
func NewReminder(db *gorm.DB, loans *services.LoanService, notifications *services.NotificationService, opts ...Option) *Reminder {
	reminder := &Reminder{
		db:            db,
		loans:         loans,
		notifications: notifications,
		now:           time.Now,
		schedule:      defaultSweepSpec,
		daysBeforeDue: defaultDaysBeforeDue,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(reminder)
	}

	if reminder.cron == nil {
		reminder.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return reminder
}

// Start registers the sweep with the cron scheduler and launches it.
func (r *Reminder) Start() error {
	if r.loans == nil || r.notifications == nil {
		return nil
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.RunOnce(context.Background()); err != nil {
			r.log.Warn("reminder sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	r.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (r *Reminder) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce executes a single sweep. Used by the scheduler, in tests and during
// startup when a sweep is overdue.
func (r *Reminder) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if err := r.sweepDueSoon(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := r.sweepOverdue(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

func (r *Reminder) sweepDueSoon(ctx context.Context) error {
	rows, err := r.loans.ListDueWithin(ctx, r.daysBeforeDue)
	if err != nil {
		return err
	}

	for _, borrow := range rows {
		sent, err := r.notifiedToday(ctx, borrow.ID, models.NotifyReturnReminder)
		if err != nil {
			return err
		}
		if sent {
			continue
		}

		title := "Return reminder"
		message := fmt.Sprintf("%q is due back on %s.", productName(&borrow), borrow.ExpectedReturnDate.Format("2006-01-02"))
		if _, err := r.notifications.Create(ctx, services.CreateNotificationInput{
			RecipientID: borrow.UserID,
			BorrowID:    borrow.ID,
			Type:        models.NotifyReturnReminder,
			Priority:    models.PriorityHigh,
			Title:       title,
			Message:     message,
		}); err != nil {
			return err
		}
		r.email(ctx, &borrow, title, message)
	}

	return nil
}

func (r *Reminder) sweepOverdue(ctx context.Context) error {
	rows, err := r.loans.ListOverdue(ctx)
	if err != nil {
		return err
	}

	metrics.OverdueLoans.Set(float64(len(rows)))

	for _, borrow := range rows {
		sent, err := r.notifiedToday(ctx, borrow.ID, models.NotifyOverdueAlert)
		if err != nil {
			return err
		}
		if sent {
			continue
		}

		days := borrow.DaysOverdue(r.now())
		title := "Overdue loan"
		message := fmt.Sprintf("%q was due on %s and is %d day(s) overdue.",
			productName(&borrow), borrow.ExpectedReturnDate.Format("2006-01-02"), days)

		if _, err := r.notifications.Create(ctx, services.CreateNotificationInput{
			RecipientID: borrow.UserID,
			BorrowID:    borrow.ID,
			Type:        models.NotifyOverdueAlert,
			Priority:    models.PriorityUrgent,
			Title:       title,
			Message:     message,
		}); err != nil {
			return err
		}

		adminMessage := message
		if borrow.User != nil {
			adminMessage = fmt.Sprintf("%s Borrowed by %s.", message, borrow.User.Username)
		}
		if err := r.notifications.NotifyAdmins(ctx, services.CreateNotificationInput{
			RelatedUserID: borrow.UserID,
			BorrowID:      borrow.ID,
			Type:          models.NotifyOverdueAlert,
			Priority:      models.PriorityHigh,
			Title:         title,
			Message:       adminMessage,
		}); err != nil {
			return err
		}

		r.email(ctx, &borrow, title, message)
	}

	return nil
}

// notifiedToday reports whether a notification of the given type was already
// created for this borrow during the current day.
func (r *Reminder) notifiedToday(ctx context.Context, borrowID string, kind models.NotificationType) (bool, error) {
	now := r.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("borrow_id = ? AND type = ? AND created_at >= ?", borrowID, kind, today).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("maintenance: check sent notifications: %w", err)
	}
	return count > 0, nil
}

// email sends a best-effort copy of the notification to the borrower. Failures
// are logged and never abort the sweep.
func (r *Reminder) email(ctx context.Context, borrow *models.Borrow, subject, body string) {
	if r.mailer == nil || borrow.User == nil || borrow.User.Email == "" {
		return
	}
	if err := r.mailer.Send(ctx, mail.Message{
		To:      []string{borrow.User.Email},
		Subject: subject,
		Body:    body,
	}); err != nil {
		r.log.Warn("reminder email failed",
			zap.String("borrow_id", borrow.ID),
			zap.Error(err))
	}
}

func productName(borrow *models.Borrow) string {
	if borrow.Product != nil {
		return borrow.Product.Name
	}
	return "a borrowed item"
}
