package domain

import (
	"context"
	"time"
)

// EmailTemplate is a reusable subject/body pair with {{placeholder}}
// variables substituted per recipient at send time.
type EmailTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// EmailTemplateRepository defines storage operations for email templates.
type EmailTemplateRepository interface {
	Create(ctx context.Context, t *EmailTemplate) error
	GetByID(ctx context.Context, id string) (*EmailTemplate, error)
}
