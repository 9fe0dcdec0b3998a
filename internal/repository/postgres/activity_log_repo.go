package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"certflow/internal/domain"
)

type activityLogRepository struct {
	DB *sql.DB
}

func NewActivityLogRepository(db *sql.DB) domain.ActivityLogRepository {
	return &activityLogRepository{
		DB: db,
	}
}

func (r *activityLogRepository) Create(ctx context.Context, l *domain.ActivityLog) error {
	details := l.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal activity details: %w", err)
	}
	query := `
		INSERT INTO activity_logs (user_id, action, details, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, l.UserID, l.Action, raw, l.Status, l.CreatedAt).Scan(&l.ID)
}
