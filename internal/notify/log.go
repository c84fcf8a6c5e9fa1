package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogDispatcher writes notifications to the log. It is used when no broker is configured.
type LogDispatcher struct {
	log *zap.Logger
}

// NewLogDispatcher creates a LogDispatcher.
func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

// Notify logs one notification.
func (d *LogDispatcher) Notify(_ context.Context, n Notification) error {
	d.log.Info("notification",
		zap.String("id", n.ID.String()),
		zap.String("user", n.UserID.String()),
		zap.String("type", n.Type),
		zap.String("title", n.Title),
		zap.String("link", n.Link),
	)
	return nil
}

// NotifyMany logs the notification once per user.
func (d *LogDispatcher) NotifyMany(ctx context.Context, userIDs []uuid.UUID, n Notification) error {
	for _, id := range userIDs {
		n.ID = uuid.New()
		n.UserID = id
		_ = d.Notify(ctx, n)
	}
	return nil
}
