package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"certflow/internal/domain"
)

type eventService struct {
	eventRepo       domain.EventRepository
	participantRepo domain.ParticipantRepository
	certificates    domain.CertificateService
	adhoc           *AdhocScheduler
	logger          *slog.Logger
	contextTimeout  time.Duration
	now             func() time.Time
}

// NewEventService returns an EventService wired to the certificate trigger
// paths. A nil now falls back to time.Now.
func NewEventService(
	eventRepo domain.EventRepository,
	participantRepo domain.ParticipantRepository,
	certificates domain.CertificateService,
	adhoc *AdhocScheduler,
	logger *slog.Logger,
	timeout time.Duration,
	now func() time.Time,
) domain.EventService {
	if now == nil {
		now = time.Now
	}
	return &eventService{
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		certificates:    certificates,
		adhoc:           adhoc,
		logger:          logger,
		contextTimeout:  timeout,
		now:             now,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, event *domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if event.CreatedBy == "" {
		return fmt.Errorf("event creator is required")
	}
	if event.Date.IsZero() {
		return fmt.Errorf("event date is required")
	}

	event.CreatedAt = s.now()
	event.UpdatedAt = s.now()

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return err
	}

	// Early trigger path; the daily sweep covers it if this timer is lost.
	s.adhoc.ScheduleEvent(event)
	return nil
}

func (s *eventService) GetEventByID(ctx context.Context, eventID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context) ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	return s.eventRepo.ListAll(ctx)
}

func (s *eventService) AddParticipant(ctx context.Context, eventID string, participant *domain.Participant) (*domain.RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	participant.EventID = &event.ID
	participant.CreatedAt = s.now()
	if err := s.participantRepo.Create(ctx, participant); err != nil {
		return nil, fmt.Errorf("create participant: %w", err)
	}

	result, err := s.certificates.CheckAndRun(ctx, eventID, []string{participant.ID})
	if err != nil {
		return nil, err
	}
	if result.Scheduled {
		// Not yet due: (re-)arm the ad-hoc timer. Re-arming on every
		// upload for the same event is a harmless duplicate.
		s.adhoc.ScheduleEvent(event)
	}
	return result, nil
}
