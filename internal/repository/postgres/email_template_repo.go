package postgres

import (
	"context"
	"database/sql"
	"errors"

	"certflow/internal/domain"
)

type emailTemplateRepository struct {
	DB *sql.DB
}

func NewEmailTemplateRepository(db *sql.DB) domain.EmailTemplateRepository {
	return &emailTemplateRepository{
		DB: db,
	}
}

func (r *emailTemplateRepository) Create(ctx context.Context, t *domain.EmailTemplate) error {
	query := `
		INSERT INTO email_templates (name, subject, body, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, t.Name, t.Subject, t.Body, t.CreatedBy, t.CreatedAt).Scan(&t.ID)
}

func (r *emailTemplateRepository) GetByID(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	query := `
		SELECT id, name, subject, body, created_by, created_at
		FROM email_templates
		WHERE id = $1
	`
	t := &domain.EmailTemplate{}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}
