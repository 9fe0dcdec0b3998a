package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"certflow/internal/domain"
)

type participantRepository struct {
	DB *sql.DB
}

func NewParticipantRepository(db *sql.DB) domain.ParticipantRepository {
	return &participantRepository{
		DB: db,
	}
}

func (r *participantRepository) Create(ctx context.Context, p *domain.Participant) error {
	custom, err := marshalCustomFields(p.CustomFields)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO participants (name, email, semester, event_id, custom_fields, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		p.Name, p.Email, p.Semester, p.EventID, custom, p.UploadedBy, p.CreatedAt,
	).Scan(&p.ID)
}

func (r *participantRepository) GetByID(ctx context.Context, id string) (*domain.Participant, error) {
	query := `
		SELECT id, name, email, semester, event_id, custom_fields,
		       email_sent, email_sent_at, certificate_sent, certificate_sent_at,
		       uploaded_by, created_at
		FROM participants
		WHERE id = $1
	`
	p, err := scanParticipant(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *participantRepository) ListUnsentCertificates(ctx context.Context, eventID string, ids []string) ([]*domain.Participant, error) {
	query := `
		SELECT id, name, email, semester, event_id, custom_fields,
		       email_sent, email_sent_at, certificate_sent, certificate_sent_at,
		       uploaded_by, created_at
		FROM participants
		WHERE event_id = $1 AND certificate_sent = false
	`
	args := []interface{}{eventID}
	if len(ids) > 0 {
		query += ` AND id = ANY($2)`
		args = append(args, pq.Array(ids))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]*domain.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *participantRepository) MarkDelivered(ctx context.Context, id string, kind domain.DeliveryKind, at time.Time) error {
	var query string
	switch kind {
	case domain.DeliveryEmail:
		query = `UPDATE participants SET email_sent = true, email_sent_at = $1 WHERE id = $2`
	case domain.DeliveryCertificate:
		query = `UPDATE participants SET certificate_sent = true, certificate_sent_at = $1 WHERE id = $2`
	default:
		return fmt.Errorf("%w: unknown delivery kind %q", domain.ErrInvalidInput, kind)
	}
	result, err := r.DB.ExecContext(ctx, query, at, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanParticipant(row rowScanner) (*domain.Participant, error) {
	p := &domain.Participant{}
	var semesterNull sql.NullString
	var eventIDNull sql.NullString
	var customRaw []byte
	var emailSentAt, certSentAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.Name, &p.Email, &semesterNull, &eventIDNull, &customRaw,
		&p.EmailSent, &emailSentAt, &p.CertificateSent, &certSentAt,
		&p.UploadedBy, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if semesterNull.Valid {
		p.Semester = semesterNull.String
	}
	if eventIDNull.Valid {
		p.EventID = &eventIDNull.String
	}
	if emailSentAt.Valid {
		p.EmailSentAt = &emailSentAt.Time
	}
	if certSentAt.Valid {
		p.CertificateSentAt = &certSentAt.Time
	}
	if len(customRaw) > 0 {
		if err := json.Unmarshal(customRaw, &p.CustomFields); err != nil {
			return nil, fmt.Errorf("unmarshal custom fields: %w", err)
		}
	}
	return p, nil
}

func marshalCustomFields(fields map[string]string) ([]byte, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal custom fields: %w", err)
	}
	return raw, nil
}
