package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"certflow/internal/domain"
)

type scheduledEmailRepository struct {
	DB *sql.DB
}

func NewScheduledEmailRepository(db *sql.DB) domain.ScheduledEmailRepository {
	return &scheduledEmailRepository{
		DB: db,
	}
}

func (r *scheduledEmailRepository) Create(ctx context.Context, s *domain.ScheduledEmail) error {
	query := `
		INSERT INTO scheduled_emails (template_id, recipients, schedule_date, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		s.TemplateID, pq.Array(s.Recipients), s.ScheduleDate, s.Status, s.CreatedBy, s.CreatedAt,
	).Scan(&s.ID)
}

func (r *scheduledEmailRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledEmail, error) {
	query := `
		SELECT id, template_id, recipients, schedule_date, status, created_by, sent_at, error_message, created_at
		FROM scheduled_emails
		WHERE id = $1
	`
	s, err := scanScheduledEmail(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *scheduledEmailRepository) ListPending(ctx context.Context) ([]*domain.ScheduledEmail, error) {
	query := `
		SELECT id, template_id, recipients, schedule_date, status, created_by, sent_at, error_message, created_at
		FROM scheduled_emails
		WHERE status = $1
		ORDER BY schedule_date ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, domain.ScheduleStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := make([]*domain.ScheduledEmail, 0)
	for rows.Next() {
		s, err := scanScheduledEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, s)
	}
	return emails, rows.Err()
}

// UpdateStatus only moves records out of pending, so a firing and a
// cancellation racing on the same id cannot both win.
func (r *scheduledEmailRepository) UpdateStatus(ctx context.Context, id string, status domain.ScheduledEmailStatus, sentAt *time.Time, errorMessage string) error {
	query := `
		UPDATE scheduled_emails
		SET status = $1, sent_at = $2, error_message = $3
		WHERE id = $4 AND status = $5
	`
	var sentAtArg sql.NullTime
	if sentAt != nil {
		sentAtArg = sql.NullTime{Time: *sentAt, Valid: true}
	}
	result, err := r.DB.ExecContext(ctx, query, status, sentAtArg, errorMessage, id, domain.ScheduleStatusPending)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanScheduledEmail(row rowScanner) (*domain.ScheduledEmail, error) {
	s := &domain.ScheduledEmail{}
	var recipients pq.StringArray
	var sentAt sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(
		&s.ID, &s.TemplateID, &recipients, &s.ScheduleDate, &s.Status,
		&s.CreatedBy, &sentAt, &errMsg, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Recipients = []string(recipients)
	if sentAt.Valid {
		s.SentAt = &sentAt.Time
	}
	if errMsg.Valid {
		s.ErrorMessage = errMsg.String
	}
	return s, nil
}
