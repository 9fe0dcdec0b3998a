package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html string) error
	// SendWithAttachment sends an email with one file attached.
	SendWithAttachment(to, subject, html, attachmentName, attachmentPath string) error
}

// TemplateRenderer substitutes {{placeholder}} variables in template text
// using the given bindings.
type TemplateRenderer interface {
	Render(text string, bindings map[string]any) (string, error)
}

// SendResult is the per-recipient outcome of a delivery attempt.
type SendResult struct {
	ParticipantID string `json:"participant_id"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

// DeliveryService sends rendered emails to participants and records the
// delivery-state flags. It is the only writer of Participant.EmailSent.
type DeliveryService interface {
	// SendToParticipant renders the template for one participant and
	// sends it, marking email_sent on success.
	SendToParticipant(ctx context.Context, participantID string, template *EmailTemplate, eventName string) SendResult
	// SendBulk sends to each participant sequentially, continuing past
	// individual failures.
	SendBulk(ctx context.Context, participantIDs []string, template *EmailTemplate, eventName string) []SendResult
	// SendCertificate emails the generated certificate as an attachment.
	// The caller (orchestrator) marks certificate_sent after this and
	// generation have both succeeded.
	SendCertificate(ctx context.Context, participant *Participant, event *Event, attachmentPath string) error
}
