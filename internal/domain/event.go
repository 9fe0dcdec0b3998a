package domain

import (
	"context"
	"time"
)

// Event represents a managed event (workshop, seminar, etc.) whose
// participants receive certificates after the event day.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewEvent returns a new Event with the given fields. ID is typically set by the repository on create.
func NewEvent(name, description string, date time.Time, createdBy string, createdAt, updatedAt time.Time) *Event {
	return &Event{
		Name:        name,
		Description: description,
		Date:        date,
		CreatedBy:   createdBy,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	ListAll(ctx context.Context) ([]*Event, error)
	// ListByDay returns events whose date falls on the calendar day of the
	// given instant in the given location.
	ListByDay(ctx context.Context, day time.Time, loc *time.Location) ([]*Event, error)
}

// EventService defines event-facing operations. Creating an event or
// adding a participant also wires the certificate trigger paths.
type EventService interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetEventByID(ctx context.Context, eventID string) (*Event, error)
	ListEvents(ctx context.Context) ([]*Event, error)
	// AddParticipant stores the participant and either runs certificate
	// generation immediately (event already actionable) or arms the
	// ad-hoc timer for the event's cutoff.
	AddParticipant(ctx context.Context, eventID string, participant *Participant) (*RunResult, error)
}
