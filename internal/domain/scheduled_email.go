package domain

import (
	"context"
	"time"
)

// ScheduledEmailStatus is the lifecycle state of a scheduled send.
// pending -> sent | failed (via firing) or pending -> cancelled (explicit).
type ScheduledEmailStatus string

const (
	ScheduleStatusPending   ScheduledEmailStatus = "pending"
	ScheduleStatusSent      ScheduledEmailStatus = "sent"
	ScheduleStatusFailed    ScheduledEmailStatus = "failed"
	ScheduleStatusCancelled ScheduledEmailStatus = "cancelled"
)

// ScheduledEmail is a durable record of a deferred bulk send. The record,
// not the in-memory timer, is the source of truth: timers are lossy across
// restarts and reconciled from pending records at startup.
type ScheduledEmail struct {
	ID           string               `json:"id"`
	TemplateID   string               `json:"template_id"`
	Recipients   []string             `json:"recipients"`
	ScheduleDate time.Time            `json:"schedule_date"`
	Status       ScheduledEmailStatus `json:"status"`
	CreatedBy    string               `json:"created_by"`
	SentAt       *time.Time           `json:"sent_at"`
	ErrorMessage string               `json:"error_message,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// ScheduledEmailRepository defines storage operations for scheduled emails.
type ScheduledEmailRepository interface {
	Create(ctx context.Context, s *ScheduledEmail) error
	GetByID(ctx context.Context, id string) (*ScheduledEmail, error)
	// ListPending returns every record still in pending status, including
	// those whose schedule date has already elapsed.
	ListPending(ctx context.Context) ([]*ScheduledEmail, error)
	// UpdateStatus atomically moves the record to the given status,
	// setting sent_at / error_message as applicable.
	UpdateStatus(ctx context.Context, id string, status ScheduledEmailStatus, sentAt *time.Time, errorMessage string) error
}

// CancelResult reports the outcome of a dispatcher cancellation. A missing
// registry entry (never scheduled, already fired, already cancelled) is a
// negative result, not an error.
type CancelResult struct {
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// ScheduledEmailDispatcher manages one-shot timers for scheduled emails.
type ScheduledEmailDispatcher interface {
	// Schedule arms a timer for the record's schedule date, or fires
	// immediately when the date has already passed.
	Schedule(ctx context.Context, scheduledEmailID string) error
	Cancel(scheduledEmailID string) CancelResult
	// ReconcileOnStartup re-arms timers for all pending records. Records
	// whose date elapsed while the process was down fire immediately.
	ReconcileOnStartup(ctx context.Context) (int, error)
}
