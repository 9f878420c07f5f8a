package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/mstanton/labtrack/pkg/logger"
)

// notify creates a notification while tolerating delivery failures. Lifecycle
// transitions commit first; a failed notification never unwinds them.
func notify(svc *NotificationService, ctx context.Context, input CreateNotificationInput) {
	if svc == nil {
		return
	}
	if _, err := svc.Create(ctx, input); err != nil {
		logger.WithModule("notifier").Warn("notification dropped",
			zap.String("type", string(input.Type)),
			zap.Error(err))
	}
}

// notifyAdmins fans a notification out to administrators, tolerating failures.
func notifyAdmins(svc *NotificationService, ctx context.Context, input CreateNotificationInput) {
	if svc == nil {
		return
	}
	if err := svc.NotifyAdmins(ctx, input); err != nil {
		logger.WithModule("notifier").Warn("admin notification dropped",
			zap.String("type", string(input.Type)),
			zap.Error(err))
	}
}
