package domain

import (
	"context"
	"time"
)

// Participant is one roster entry for an event. The two delivery-state
// pairs (email, certificate) are the system's at-most-once markers: once
// CertificateSent is true the orchestrator never regenerates or resends
// for this participant.
type Participant struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Semester          string            `json:"semester"`
	EventID           *string           `json:"event_id"`
	CustomFields      map[string]string `json:"custom_fields"`
	EmailSent         bool              `json:"email_sent"`
	EmailSentAt       *time.Time        `json:"email_sent_at"`
	CertificateSent   bool              `json:"certificate_sent"`
	CertificateSentAt *time.Time        `json:"certificate_sent_at"`
	UploadedBy        string            `json:"uploaded_by"`
	CreatedAt         time.Time         `json:"created_at"`
}

// DeliveryKind selects which delivery-state pair a flag update targets.
type DeliveryKind string

const (
	DeliveryEmail       DeliveryKind = "email"
	DeliveryCertificate DeliveryKind = "certificate"
)

// ParticipantRepository defines storage operations for participants.
type ParticipantRepository interface {
	Create(ctx context.Context, p *Participant) error
	GetByID(ctx context.Context, id string) (*Participant, error)
	// ListUnsentCertificates returns the event's participants with
	// certificate_sent = false. When ids is non-empty the result is
	// restricted to that subset. Filtering happens at read time so a
	// concurrent run that already marked a participant is not re-fetched.
	ListUnsentCertificates(ctx context.Context, eventID string, ids []string) ([]*Participant, error)
	// MarkDelivered sets the flag and timestamp for the given kind.
	MarkDelivered(ctx context.Context, id string, kind DeliveryKind, at time.Time) error
}
