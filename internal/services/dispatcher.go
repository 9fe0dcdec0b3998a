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

// emailDispatcher manages one-shot timers for scheduled bulk emails. The
// in-memory registry is a cache of scheduled work, never authoritative:
// the persisted ScheduledEmail records are, and ReconcileOnStartup
// rebuilds the registry from them after a restart.
type emailDispatcher struct {
	scheduledRepo   domain.ScheduledEmailRepository
	templateRepo    domain.EmailTemplateRepository
	participantRepo domain.ParticipantRepository
	eventRepo       domain.EventRepository
	delivery        domain.DeliveryService
	activity        domain.ActivityLogger
	notifier        domain.Notifier
	logger          *slog.Logger
	now             func() time.Time

	mu       sync.Mutex
	timers   map[string]*time.Timer
	inFlight map[string]struct{}
}

// NewEmailDispatcher returns a ScheduledEmailDispatcher. A nil now falls
// back to time.Now.
func NewEmailDispatcher(
	scheduledRepo domain.ScheduledEmailRepository,
	templateRepo domain.EmailTemplateRepository,
	participantRepo domain.ParticipantRepository,
	eventRepo domain.EventRepository,
	delivery domain.DeliveryService,
	activity domain.ActivityLogger,
	notifier domain.Notifier,
	logger *slog.Logger,
	now func() time.Time,
) domain.ScheduledEmailDispatcher {
	if now == nil {
		now = time.Now
	}
	return &emailDispatcher{
		scheduledRepo:   scheduledRepo,
		templateRepo:    templateRepo,
		participantRepo: participantRepo,
		eventRepo:       eventRepo,
		delivery:        delivery,
		activity:        activity,
		notifier:        notifier,
		logger:          logger,
		now:             now,
		timers:          make(map[string]*time.Timer),
		inFlight:        make(map[string]struct{}),
	}
}

// Schedule arms a timer for the record's schedule date. A date at or
// before now fires synchronously.
func (d *emailDispatcher) Schedule(ctx context.Context, scheduledEmailID string) error {
	scheduled, err := d.scheduledRepo.GetByID(ctx, scheduledEmailID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get scheduled email: %w", err)
	}
	if scheduled.Status != domain.ScheduleStatusPending {
		return fmt.Errorf("%w: scheduled email %s is %s, not pending", domain.ErrInvalidInput, scheduledEmailID, scheduled.Status)
	}

	delay := scheduled.ScheduleDate.Sub(d.now())
	if delay <= 0 {
		d.fire(ctx, scheduledEmailID)
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.timers[scheduledEmailID]; ok {
		existing.Stop()
	}
	d.timers[scheduledEmailID] = time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("scheduled email firing panicked", "scheduled_email_id", scheduledEmailID, "panic", r)
			}
		}()
		d.fire(context.Background(), scheduledEmailID)
	})

	d.logger.Info("email scheduled", "scheduled_email_id", scheduledEmailID, "fire_at", scheduled.ScheduleDate)
	return nil
}

// Cancel stops and removes the job's timer. A job that already fired (or
// was never scheduled) reports not-found rather than erroring: the
// registry entry is removed before the send begins, so cancellation can
// never corrupt a firing in progress.
func (d *emailDispatcher) Cancel(scheduledEmailID string) domain.CancelResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	timer, ok := d.timers[scheduledEmailID]
	if !ok {
		return domain.CancelResult{Cancelled: false, Message: "scheduled email not found"}
	}
	timer.Stop()
	delete(d.timers, scheduledEmailID)
	d.logger.Info("scheduled email cancelled", "scheduled_email_id", scheduledEmailID)
	return domain.CancelResult{Cancelled: true, Message: "scheduled email cancelled"}
}

// ReconcileOnStartup re-arms timers for every pending record. Records
// whose schedule date elapsed while the process was down fire immediately
// through the Schedule synchronous path instead of being stranded.
func (d *emailDispatcher) ReconcileOnStartup(ctx context.Context) (int, error) {
	pending, err := d.scheduledRepo.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending scheduled emails: %w", err)
	}

	rescheduled := 0
	for _, scheduled := range pending {
		if err := d.Schedule(ctx, scheduled.ID); err != nil {
			d.logger.Error("failed to reschedule email", "scheduled_email_id", scheduled.ID, "err", err)
			continue
		}
		rescheduled++
	}

	d.logger.Info("scheduled emails reconciled", "pending", len(pending), "rescheduled", rescheduled)
	return rescheduled, nil
}

// fire sends the batch. The registry entry and an in-flight guard are
// handled first so a concurrent Cancel reports not-found and a duplicate
// timer cannot start a second send for the same job.
func (d *emailDispatcher) fire(ctx context.Context, scheduledEmailID string) {
	d.mu.Lock()
	if _, busy := d.inFlight[scheduledEmailID]; busy {
		d.mu.Unlock()
		return
	}
	d.inFlight[scheduledEmailID] = struct{}{}
	if timer, ok := d.timers[scheduledEmailID]; ok {
		timer.Stop()
		delete(d.timers, scheduledEmailID)
	}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.inFlight, scheduledEmailID)
		d.mu.Unlock()
	}()

	if err := d.dispatch(ctx, scheduledEmailID); err != nil {
		d.logger.Error("scheduled email dispatch failed", "scheduled_email_id", scheduledEmailID, "err", err)
		if updateErr := d.scheduledRepo.UpdateStatus(ctx, scheduledEmailID, domain.ScheduleStatusFailed, nil, err.Error()); updateErr != nil {
			d.logger.Error("failed to mark scheduled email failed", "scheduled_email_id", scheduledEmailID, "err", updateErr)
		}
	}
}

func (d *emailDispatcher) dispatch(ctx context.Context, scheduledEmailID string) error {
	scheduled, err := d.scheduledRepo.GetByID(ctx, scheduledEmailID)
	if err != nil {
		return fmt.Errorf("get scheduled email: %w", err)
	}
	if scheduled.Status != domain.ScheduleStatusPending {
		d.logger.Info("scheduled email no longer pending, skipping", "scheduled_email_id", scheduledEmailID, "status", scheduled.Status)
		return nil
	}

	template, err := d.templateRepo.GetByID(ctx, scheduled.TemplateID)
	if err != nil {
		return fmt.Errorf("get email template: %w", err)
	}

	eventName := d.lookupEventName(ctx, scheduled.Recipients)

	// Partial recipient failures do not fail the batch; the record still
	// moves to sent and the failures surface in the notification counts.
	results := d.delivery.SendBulk(ctx, scheduled.Recipients, template, eventName)
	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}

	sentAt := d.now()
	if err := d.scheduledRepo.UpdateStatus(ctx, scheduledEmailID, domain.ScheduleStatusSent, &sentAt, ""); err != nil {
		return fmt.Errorf("mark scheduled email sent: %w", err)
	}

	d.activity.Record(ctx, scheduled.CreatedBy, "Scheduled email dispatch", map[string]any{
		"scheduled_email_id": scheduledEmailID,
		"total":              len(results),
		"successful":         successful,
	}, http.StatusOK)

	d.notifier.Publish(domain.Notification{
		Name:    domain.NotifyEmailsSent,
		Message: fmt.Sprintf("Scheduled emails sent. %d successful.", successful),
		Payload: map[string]any{
			"scheduled_email_id": scheduledEmailID,
			"total":              len(results),
			"successful":         successful,
			"user_id":            scheduled.CreatedBy,
		},
	})

	d.logger.Info("scheduled email dispatched",
		"scheduled_email_id", scheduledEmailID,
		"successful", successful, "total", len(results),
	)
	return nil
}

// lookupEventName resolves the event of the first recipient that has one,
// for the {{event_name}} template binding.
func (d *emailDispatcher) lookupEventName(ctx context.Context, recipients []string) string {
	for _, id := range recipients {
		participant, err := d.participantRepo.GetByID(ctx, id)
		if err != nil || participant.EventID == nil {
			continue
		}
		event, err := d.eventRepo.GetByID(ctx, *participant.EventID)
		if err != nil {
			continue
		}
		return event.Name
	}
	return ""
}
