package domain

import (
	"context"
	"time"
)

// ActivityLog is an append-only audit record. It is a write-only
// observability sink; nothing in the core reads it back for decisions.
type ActivityLog struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	Status    int            `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActivityLogRepository defines storage operations for activity logs.
type ActivityLogRepository interface {
	Create(ctx context.Context, l *ActivityLog) error
}

// ActivityLogger records audit entries after state changes. Implementations
// must never propagate write failures to the caller.
type ActivityLogger interface {
	Record(ctx context.Context, userID, action string, details map[string]any, status int)
}
