package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"certflow/internal/domain"
)

// AdhocScheduler arms one-shot timers that trigger certificate generation
// for a single event at its cutoff instant. It is a secondary, early
// trigger path: timers live only in memory and are lost on restart, which
// the daily sweep covers. Re-arming the same event (every roster upload
// does) replaces the previous timer and is harmless because the
// orchestrator's per-participant sent flag absorbs duplicate runs.
type AdhocScheduler struct {
	certificates domain.CertificateService
	eligibility  *EligibilityEvaluator
	logger       *slog.Logger
	now          func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewAdhocScheduler returns an ad-hoc scheduler. A nil now falls back to
// time.Now.
func NewAdhocScheduler(
	certificates domain.CertificateService,
	eligibility *EligibilityEvaluator,
	logger *slog.Logger,
	now func() time.Time,
) *AdhocScheduler {
	if now == nil {
		now = time.Now
	}
	return &AdhocScheduler{
		certificates: certificates,
		eligibility:  eligibility,
		logger:       logger,
		now:          now,
		timers:       make(map[string]*time.Timer),
	}
}

// ScheduleEvent arms a timer for the event's day at the configured cutoff.
// It declines (returns false) when that instant has already passed; the
// caller should then run the eligibility check directly instead.
func (a *AdhocScheduler) ScheduleEvent(event *domain.Event) (time.Time, bool) {
	fireAt := a.eligibility.CutoffOn(event.Date)
	delay := fireAt.Sub(a.now())
	if delay <= 0 {
		a.logger.Info("event cutoff already passed, not scheduling", "event_id", event.ID, "event", event.Name)
		return time.Time{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.timers[event.ID]; ok {
		existing.Stop()
	}
	eventID := event.ID
	a.timers[eventID] = time.AfterFunc(delay, func() {
		a.fire(eventID)
	})

	a.logger.Info("certificate generation scheduled", "event_id", event.ID, "event", event.Name, "fire_at", fireAt)
	return fireAt, true
}

func (a *AdhocScheduler) fire(eventID string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("ad-hoc certificate run panicked", "event_id", eventID, "panic", r)
		}
	}()

	a.mu.Lock()
	delete(a.timers, eventID)
	a.mu.Unlock()

	a.logger.Info("executing scheduled certificate generation", "event_id", eventID)
	if _, err := a.certificates.RunForEvent(context.Background(), eventID, nil); err != nil {
		a.logger.Error("scheduled certificate generation failed", "event_id", eventID, "err", err)
	}
}

// ArmedCount reports how many event timers are currently armed.
func (a *AdhocScheduler) ArmedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}

// Stop disarms every timer, for shutdown.
func (a *AdhocScheduler) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
}
