package services

import (
	"time"

	"certflow/internal/domain"
)

// DueStatus is the eligibility verdict for certificate generation.
type DueStatus int

const (
	// DueFuture means the event day has not arrived.
	DueFuture DueStatus = iota
	// DueTodayBeforeCutoff means the event is today but the daily cutoff
	// has not passed yet.
	DueTodayBeforeCutoff
	// DueActionable means certificates may be generated now.
	DueActionable
)

func (s DueStatus) String() string {
	switch s {
	case DueFuture:
		return "future"
	case DueTodayBeforeCutoff:
		return "today-before-cutoff"
	default:
		return "actionable"
	}
}

// EligibilityEvaluator decides whether an event's participants currently
// qualify for certificate generation. The comparison is calendar-day based
// (time-of-day stripped), not a duration comparison, so partial-day and
// timezone edge cases cannot flip the verdict. The cutoff comes from
// configuration and is shared by every call site.
type EligibilityEvaluator struct {
	cutoffHour   int
	cutoffMinute int
	loc          *time.Location
}

// NewEligibilityEvaluator returns an evaluator using the given daily cutoff
// in the given location.
func NewEligibilityEvaluator(cutoffHour, cutoffMinute int, loc *time.Location) *EligibilityEvaluator {
	if loc == nil {
		loc = time.Local
	}
	return &EligibilityEvaluator{cutoffHour: cutoffHour, cutoffMinute: cutoffMinute, loc: loc}
}

// Location returns the evaluator's timezone.
func (e *EligibilityEvaluator) Location() *time.Location {
	return e.loc
}

// CutoffOn returns the cutoff instant on the calendar day of t.
func (e *EligibilityEvaluator) CutoffOn(t time.Time) time.Time {
	local := t.In(e.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), e.cutoffHour, e.cutoffMinute, 0, 0, e.loc)
}

// Evaluate reports whether certificate generation for the event is due at
// the given instant. The result is monotonic in now: once Actionable,
// always Actionable.
func (e *EligibilityEvaluator) Evaluate(event *domain.Event, now time.Time) DueStatus {
	eventDay := startOfDay(event.Date, e.loc)
	today := startOfDay(now, e.loc)

	if eventDay.After(today) {
		return DueFuture
	}
	if eventDay.Equal(today) && now.In(e.loc).Before(e.CutoffOn(now)) {
		return DueTodayBeforeCutoff
	}
	return DueActionable
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
