package services

import (
	"context"
	"log/slog"
	"time"

	"certflow/internal/domain"
)

type activityLogger struct {
	repo   domain.ActivityLogRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewActivityLogger returns an ActivityLogger that writes audit records
// after state changes. Write failures are logged and swallowed: audit must
// never fail the operation it describes.
func NewActivityLogger(repo domain.ActivityLogRepository, logger *slog.Logger, now func() time.Time) domain.ActivityLogger {
	if now == nil {
		now = time.Now
	}
	return &activityLogger{repo: repo, logger: logger, now: now}
}

func (a *activityLogger) Record(ctx context.Context, userID, action string, details map[string]any, status int) {
	entry := &domain.ActivityLog{
		UserID:    userID,
		Action:    action,
		Details:   details,
		Status:    status,
		CreatedAt: a.now(),
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		a.logger.Error("failed to write activity log", "action", action, "err", err)
	}
}
