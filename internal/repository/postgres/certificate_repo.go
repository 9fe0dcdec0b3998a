package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"certflow/internal/domain"
)

type certificateTemplateRepository struct {
	DB *sql.DB
}

func NewCertificateTemplateRepository(db *sql.DB) domain.CertificateTemplateRepository {
	return &certificateTemplateRepository{
		DB: db,
	}
}

func (r *certificateTemplateRepository) Create(ctx context.Context, t *domain.CertificateTemplate) error {
	query := `
		INSERT INTO certificate_templates
			(event_id, template_image, template_type, name_x, name_y, font_size, font_family, color, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		t.EventID, t.TemplateImage, t.TemplateType,
		t.Placement.X, t.Placement.Y, t.Placement.FontSize, t.Placement.FontFamily, t.Placement.Color,
		t.CreatedBy, t.CreatedAt,
	).Scan(&t.ID)
}

func (r *certificateTemplateRepository) GetByEventID(ctx context.Context, eventID string) (*domain.CertificateTemplate, error) {
	query := `
		SELECT id, event_id, template_image, template_type, name_x, name_y, font_size, font_family, color, created_by, created_at
		FROM certificate_templates
		WHERE event_id = $1
	`
	t := &domain.CertificateTemplate{}
	err := r.DB.QueryRowContext(ctx, query, eventID).Scan(
		&t.ID, &t.EventID, &t.TemplateImage, &t.TemplateType,
		&t.Placement.X, &t.Placement.Y, &t.Placement.FontSize, &t.Placement.FontFamily, &t.Placement.Color,
		&t.CreatedBy, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// AppendGenerated writes the run's accumulated audit entries in one
// transaction rather than one write per participant.
func (r *certificateTemplateRepository) AppendGenerated(ctx context.Context, templateID string, entries []domain.GeneratedCertificate) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO generated_certificates (template_id, participant_id, certificate_url, sent_at)
		VALUES ($1, $2, $3, $4)
	`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query, templateID, entry.ParticipantID, entry.CertificateURL, entry.SentAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append generated certificate: %w", err)
		}
	}
	return tx.Commit()
}

func (r *certificateTemplateRepository) ListGenerated(ctx context.Context, templateID string) ([]domain.GeneratedCertificate, error) {
	query := `
		SELECT participant_id, certificate_url, sent_at
		FROM generated_certificates
		WHERE template_id = $1
		ORDER BY sent_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.GeneratedCertificate, 0)
	for rows.Next() {
		var e domain.GeneratedCertificate
		if err := rows.Scan(&e.ParticipantID, &e.CertificateURL, &e.SentAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
