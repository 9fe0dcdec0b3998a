package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"certflow/internal/domain"
)

// SweepResult summarizes one pass of the daily sweep.
type SweepResult struct {
	EventsMatched   int
	TotalProcessed  int
	TotalSuccessful int
}

// DailySweep is the recurring durability backstop: once per day at a fixed
// wall-clock time it scans every event, filters the actionable ones, and
// runs the certificate orchestrator for each. Ad-hoc timers lost to a
// process restart are covered here at most one calendar day late.
//
// Rather than a cron engine, the sweep computes the next fire instant
// itself and arms a single one-shot timer that re-arms after firing.
type DailySweep struct {
	certificates domain.CertificateService
	eventRepo    domain.EventRepository
	eligibility  *EligibilityEvaluator
	logger       *slog.Logger
	now          func() time.Time

	fireHour   int
	fireMinute int
	loc        *time.Location

	mu      sync.Mutex
	timer   *time.Timer
	running bool
}

// NewDailySweep returns a sweep firing daily at fireHour:fireMinute in loc.
// A nil now falls back to time.Now.
func NewDailySweep(
	certificates domain.CertificateService,
	eventRepo domain.EventRepository,
	eligibility *EligibilityEvaluator,
	fireHour, fireMinute int,
	loc *time.Location,
	logger *slog.Logger,
	now func() time.Time,
) *DailySweep {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &DailySweep{
		certificates: certificates,
		eventRepo:    eventRepo,
		eligibility:  eligibility,
		logger:       logger,
		now:          now,
		fireHour:     fireHour,
		fireMinute:   fireMinute,
		loc:          loc,
	}
}

// NextFire returns the next fire instant strictly after the given time.
func (d *DailySweep) NextFire(after time.Time) time.Time {
	local := after.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.fireHour, d.fireMinute, 0, 0, d.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start arms the timer for the next fire instant. Calling Start on a
// running sweep is a no-op.
func (d *DailySweep) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.arm()
	d.logger.Info("daily sweep started",
		"fire_time", time.Date(0, 1, 1, d.fireHour, d.fireMinute, 0, 0, time.UTC).Format("15:04"),
		"timezone", d.loc.String(),
		"next_fire", d.NextFire(d.now()),
	)
}

// Stop disarms the timer. A sweep pass already in flight runs to completion.
func (d *DailySweep) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// arm must be called with d.mu held.
func (d *DailySweep) arm() {
	delay := time.Until(d.NextFire(d.now()))
	d.timer = time.AfterFunc(delay, d.fire)
}

func (d *DailySweep) fire() {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("daily sweep panicked", "panic", r)
		}
		d.mu.Lock()
		if d.running {
			d.arm()
		}
		d.mu.Unlock()
	}()

	result, err := d.RunOnce(context.Background())
	if err != nil {
		d.logger.Error("daily sweep failed", "err", err)
		return
	}
	d.logger.Info("daily sweep completed",
		"events", result.EventsMatched,
		"successful", result.TotalSuccessful,
		"processed", result.TotalProcessed,
	)
}

// RunOnce performs a single sweep pass: every actionable event gets a full
// orchestrator run with no participant filter, so participants added after
// an earlier trigger are still picked up. Per-event failures are logged
// and do not halt the remaining events.
func (d *DailySweep) RunOnce(ctx context.Context) (*SweepResult, error) {
	now := d.now()
	d.logger.Info("daily sweep running", "at", now)

	events, err := d.eventRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, event := range events {
		if d.eligibility.Evaluate(event, now) != DueActionable {
			continue
		}
		result.EventsMatched++
		run, err := d.certificates.RunForEvent(ctx, event.ID, nil)
		if err != nil {
			d.logger.Error("sweep: event run failed", "event_id", event.ID, "err", err)
			continue
		}
		result.TotalProcessed += run.Total
		result.TotalSuccessful += run.Successful
	}

	if result.EventsMatched == 0 {
		d.logger.Info("daily sweep found no actionable events")
	}
	return result, nil
}
