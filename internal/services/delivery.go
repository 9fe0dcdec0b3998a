package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"certflow/internal/domain"
)

type deliveryService struct {
	participantRepo domain.ParticipantRepository
	mailer          domain.Mailer
	renderer        domain.TemplateRenderer
	logger          *slog.Logger
	now             func() time.Time
}

// NewDeliveryService returns a DeliveryService that renders templates and
// sends through the given mailer. A nil now falls back to time.Now.
func NewDeliveryService(
	participantRepo domain.ParticipantRepository,
	mailer domain.Mailer,
	renderer domain.TemplateRenderer,
	logger *slog.Logger,
	now func() time.Time,
) domain.DeliveryService {
	if now == nil {
		now = time.Now
	}
	return &deliveryService{
		participantRepo: participantRepo,
		mailer:          mailer,
		renderer:        renderer,
		logger:          logger,
		now:             now,
	}
}

// bindings builds the substitution data for one participant: standard
// fields first, then custom roster columns, then the event name.
func bindings(p *domain.Participant, eventName string) map[string]any {
	b := map[string]any{
		"name":     p.Name,
		"email":    p.Email,
		"semester": p.Semester,
	}
	for key, value := range p.CustomFields {
		b[key] = value
	}
	if eventName != "" {
		b["event_name"] = eventName
	}
	return b
}

func (s *deliveryService) SendToParticipant(ctx context.Context, participantID string, template *domain.EmailTemplate, eventName string) domain.SendResult {
	fail := func(err error) domain.SendResult {
		return domain.SendResult{ParticipantID: participantID, Success: false, Error: err.Error()}
	}
	if template == nil {
		return fail(fmt.Errorf("email template is nil"))
	}

	participant, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return fail(fmt.Errorf("get participant: %w", err))
	}

	data := bindings(participant, eventName)
	subject, err := s.renderer.Render(template.Subject, data)
	if err != nil {
		return fail(fmt.Errorf("render subject: %w", err))
	}
	body, err := s.renderer.Render(template.Body, data)
	if err != nil {
		return fail(fmt.Errorf("render body: %w", err))
	}

	if err := s.mailer.Send(participant.Email, subject, body); err != nil {
		return fail(fmt.Errorf("send email: %w", err))
	}

	if err := s.participantRepo.MarkDelivered(ctx, participant.ID, domain.DeliveryEmail, s.now()); err != nil {
		// The email went out; a failed flag write must not turn the send
		// into a failure, but it is worth surfacing.
		s.logger.Error("failed to mark email sent", "participant_id", participant.ID, "err", err)
	}

	s.logger.Info("email sent", "participant_id", participant.ID, "template_id", template.ID)
	return domain.SendResult{ParticipantID: participantID, Success: true}
}

// SendBulk processes recipients sequentially to bound provider load,
// continuing past individual failures.
func (s *deliveryService) SendBulk(ctx context.Context, participantIDs []string, template *domain.EmailTemplate, eventName string) []domain.SendResult {
	results := make([]domain.SendResult, 0, len(participantIDs))
	for _, id := range participantIDs {
		results = append(results, s.SendToParticipant(ctx, id, template, eventName))
	}
	return results
}

func (s *deliveryService) SendCertificate(ctx context.Context, participant *domain.Participant, event *domain.Event, attachmentPath string) error {
	if participant == nil || event == nil {
		return domain.ErrInvalidInput
	}

	eventName := event.Name
	if eventName == "" {
		eventName = "Event"
	}
	subject := fmt.Sprintf("Your Certificate for %s", eventName)
	var body strings.Builder
	body.WriteString("<html><body>")
	fmt.Fprintf(&body, "<h2>Congratulations %s!</h2>", participant.Name)
	fmt.Fprintf(&body, "<p>Thank you for participating in <strong>%s</strong>.</p>", eventName)
	if event.Description != "" {
		fmt.Fprintf(&body, "<p>%s</p>", event.Description)
	}
	body.WriteString("<p>Please find your certificate attached to this email.</p>")
	body.WriteString("<p>Best regards,<br>Certflow</p>")
	body.WriteString("</body></html>")

	attachmentName := fmt.Sprintf("Certificate_%s.pdf", strings.ReplaceAll(participant.Name, " ", "_"))
	if err := s.mailer.SendWithAttachment(participant.Email, subject, body.String(), attachmentName, attachmentPath); err != nil {
		return fmt.Errorf("send certificate email: %w", err)
	}

	s.logger.Info("certificate email sent", "participant_id", participant.ID, "event_id", event.ID)
	return nil
}
