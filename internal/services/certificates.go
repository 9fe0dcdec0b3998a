package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"certflow/internal/domain"
)

// keyedMutex serializes work per key. Used to guarantee at most one
// orchestrator run per event even when the ad-hoc timer, the daily sweep,
// and a manual trigger race on the same event.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

type certificateService struct {
	eventRepo       domain.EventRepository
	participantRepo domain.ParticipantRepository
	templateRepo    domain.CertificateTemplateRepository
	generator       domain.CertificateGenerator
	delivery        domain.DeliveryService
	eligibility     *EligibilityEvaluator
	activity        domain.ActivityLogger
	notifier        domain.Notifier
	logger          *slog.Logger
	now             func() time.Time
	runLocks        *keyedMutex
}

// NewCertificateService returns the certificate orchestrator. A nil now
// falls back to time.Now.
func NewCertificateService(
	eventRepo domain.EventRepository,
	participantRepo domain.ParticipantRepository,
	templateRepo domain.CertificateTemplateRepository,
	generator domain.CertificateGenerator,
	delivery domain.DeliveryService,
	eligibility *EligibilityEvaluator,
	activity domain.ActivityLogger,
	notifier domain.Notifier,
	logger *slog.Logger,
	now func() time.Time,
) domain.CertificateService {
	if now == nil {
		now = time.Now
	}
	return &certificateService{
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		templateRepo:    templateRepo,
		generator:       generator,
		delivery:        delivery,
		eligibility:     eligibility,
		activity:        activity,
		notifier:        notifier,
		logger:          logger,
		now:             now,
		runLocks:        newKeyedMutex(),
	}
}

// CheckAndRun applies the eligibility policy before doing any work. Used by
// the post-upload trigger path; the daily sweep filters eligibility itself
// and calls RunForEvent directly.
func (s *certificateService) CheckAndRun(ctx context.Context, eventID string, participantIDs []string) (*domain.RunResult, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	switch s.eligibility.Evaluate(event, s.now()) {
	case DueFuture:
		return &domain.RunResult{
			Success:   true,
			Scheduled: true,
			Message:   "event date is in the future; certificates will be generated automatically on event day",
		}, nil
	case DueTodayBeforeCutoff:
		return &domain.RunResult{
			Success:   true,
			Scheduled: true,
			Message:   "event is today but before the cutoff; certificates will be generated automatically at the cutoff",
		}, nil
	}
	return s.RunForEvent(ctx, eventID, participantIDs)
}

// RunForEvent generates and delivers certificates for all of the event's
// unsent participants (or the given subset). A participant is marked sent
// only after both generation and delivery succeed; per-participant
// failures are recorded and do not stop the batch.
func (s *certificateService) RunForEvent(ctx context.Context, eventID string, participantIDs []string) (*domain.RunResult, error) {
	unlock := s.runLocks.lock(eventID)
	defer unlock()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	// A missing template is fatal for the whole run: no participant is
	// touched.
	template, err := s.templateRepo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("no certificate template for event", "event_id", eventID, "event", event.Name)
			return &domain.RunResult{
				Success: false,
				Message: domain.ErrTemplateMissing.Error(),
			}, nil
		}
		return nil, fmt.Errorf("get certificate template: %w", err)
	}

	// Re-query unsent participants at read time: a concurrent trigger that
	// already processed some of them shrinks this set.
	participants, err := s.participantRepo.ListUnsentCertificates(ctx, eventID, participantIDs)
	if err != nil {
		return nil, fmt.Errorf("list unsent participants: %w", err)
	}
	if len(participants) == 0 {
		s.logger.Info("no unsent participants for event", "event_id", eventID, "event", event.Name)
		return &domain.RunResult{
			Success: true,
			Message: "no new participants found or all have already received certificates",
			Results: []domain.ParticipantResult{},
		}, nil
	}

	s.logger.Info("generating certificates", "event_id", eventID, "event", event.Name, "participants", len(participants))

	results := make([]domain.ParticipantResult, 0, len(participants))
	entries := make([]domain.GeneratedCertificate, 0, len(participants))

	// Sequential on purpose: bounds email-provider load and avoids
	// overlapping network calls for the same participant.
	for _, participant := range participants {
		result := s.processParticipant(ctx, participant, event, template)
		results = append(results, result.ParticipantResult)
		if result.entry != nil {
			entries = append(entries, *result.entry)
		}
	}

	// One write for the accumulated audit entries, not one per participant.
	if err := s.templateRepo.AppendGenerated(ctx, template.ID, entries); err != nil {
		s.logger.Error("failed to append generated-certificate audit entries", "event_id", eventID, "err", err)
	}

	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}
	run := &domain.RunResult{
		Success:    true,
		Message:    fmt.Sprintf("certificates generated for %d participant(s)", successful),
		Total:      len(results),
		Successful: successful,
		Failed:     len(results) - successful,
		Results:    results,
	}

	s.activity.Record(ctx, event.CreatedBy, "Automatic certificate generation", map[string]any{
		"event_id":   event.ID,
		"event_name": event.Name,
		"total":      run.Total,
		"successful": run.Successful,
	}, http.StatusOK)

	s.notifier.Publish(domain.Notification{
		Name:    domain.NotifyCertificatesGenerated,
		Message: fmt.Sprintf("Certificates generated for %s. %d successful.", event.Name, run.Successful),
		Payload: map[string]any{
			"event_id":   event.ID,
			"event_name": event.Name,
			"total":      run.Total,
			"successful": run.Successful,
		},
	})

	s.logger.Info("certificate run completed",
		"event_id", eventID, "event", event.Name,
		"successful", run.Successful, "total", run.Total,
	)
	return run, nil
}

type participantOutcome struct {
	domain.ParticipantResult
	entry *domain.GeneratedCertificate
}

func (s *certificateService) processParticipant(ctx context.Context, participant *domain.Participant, event *domain.Event, template *domain.CertificateTemplate) participantOutcome {
	fail := func(err error) participantOutcome {
		s.logger.Error("certificate processing failed",
			"participant_id", participant.ID, "event_id", event.ID, "err", err)
		return participantOutcome{ParticipantResult: domain.ParticipantResult{
			ParticipantID:   participant.ID,
			ParticipantName: participant.Name,
			Success:         false,
			Error:           err.Error(),
		}}
	}

	filePath, certURL, err := s.generator.Generate(participant, event, template)
	if err != nil {
		return fail(fmt.Errorf("generate certificate: %w", err))
	}

	if err := s.delivery.SendCertificate(ctx, participant, event, filePath); err != nil {
		return fail(err)
	}

	sentAt := s.now()
	if err := s.participantRepo.MarkDelivered(ctx, participant.ID, domain.DeliveryCertificate, sentAt); err != nil {
		return fail(fmt.Errorf("mark certificate sent: %w", err))
	}

	s.notifier.Publish(domain.Notification{
		Name:    domain.NotifyCertificateGenerated,
		Message: fmt.Sprintf("Certificate sent to %s", participant.Name),
		Payload: map[string]any{
			"participant_id": participant.ID,
			"event_id":       event.ID,
		},
	})

	return participantOutcome{
		ParticipantResult: domain.ParticipantResult{
			ParticipantID:   participant.ID,
			ParticipantName: participant.Name,
			Success:         true,
		},
		entry: &domain.GeneratedCertificate{
			ParticipantID:  participant.ID,
			CertificateURL: certURL,
			SentAt:         sentAt,
		},
	}
}
