package domain

import (
	"context"
	"time"
)

// TemplateType is the closed set of certificate artwork styles.
type TemplateType string

const (
	TemplateClassic TemplateType = "classic"
	TemplateCustom  TemplateType = "custom"
)

// NamePlacement describes where and how the participant name is drawn on
// the template image.
type NamePlacement struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	FontSize   float64 `json:"font_size"`
	FontFamily string  `json:"font_family"`
	Color      string  `json:"color"`
}

// GeneratedCertificate is one entry in the template's append-only audit
// trail. It is denormalized bookkeeping; Participant.CertificateSent is
// the source of truth for "has this participant received one".
type GeneratedCertificate struct {
	ParticipantID  string    `json:"participant_id"`
	CertificateURL string    `json:"certificate_url"`
	SentAt         time.Time `json:"sent_at"`
}

// CertificateTemplate holds the artwork and placement metadata for one
// event's certificates.
type CertificateTemplate struct {
	ID            string        `json:"id"`
	EventID       string        `json:"event_id"`
	TemplateImage string        `json:"template_image"`
	TemplateType  TemplateType  `json:"template_type"`
	Placement     NamePlacement `json:"placement"`
	CreatedBy     string        `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CertificateTemplateRepository defines storage operations for certificate templates.
type CertificateTemplateRepository interface {
	Create(ctx context.Context, t *CertificateTemplate) error
	GetByEventID(ctx context.Context, eventID string) (*CertificateTemplate, error)
	// AppendGenerated appends audit entries to the template's
	// generated-certificates log in a single write.
	AppendGenerated(ctx context.Context, templateID string, entries []GeneratedCertificate) error
	ListGenerated(ctx context.Context, templateID string) ([]GeneratedCertificate, error)
}

// CertificateGenerator renders a certificate document for one participant.
// Pure function of (participant, event, template); no scheduling knowledge.
type CertificateGenerator interface {
	Generate(participant *Participant, event *Event, template *CertificateTemplate) (filePath, certificateURL string, err error)
}

// ParticipantResult is the per-participant outcome of an orchestrator run.
type ParticipantResult struct {
	ParticipantID   string `json:"participant_id"`
	ParticipantName string `json:"participant_name"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
}

// RunResult aggregates one orchestrator run for one event. Scheduled is
// true when the eligibility check deferred the run to a later trigger
// instead of doing any work.
type RunResult struct {
	Success    bool                `json:"success"`
	Scheduled  bool                `json:"scheduled,omitempty"`
	Message    string              `json:"message"`
	Total      int                 `json:"total"`
	Successful int                 `json:"successful"`
	Failed     int                 `json:"failed"`
	Results    []ParticipantResult `json:"results"`
}

// CertificateService orchestrates certificate generation and delivery.
type CertificateService interface {
	// RunForEvent generates and delivers certificates for the event's
	// unsent participants (or the given subset). A missing template is
	// fatal for the whole run; per-participant failures are isolated.
	RunForEvent(ctx context.Context, eventID string, participantIDs []string) (*RunResult, error)
	// CheckAndRun applies the eligibility policy first: if the event is
	// not yet actionable it returns a scheduled-for-later result without
	// touching any participant.
	CheckAndRun(ctx context.Context, eventID string, participantIDs []string) (*RunResult, error)
}
