package domain

import "errors"

// Sentinel errors shared across services and repositories.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemplateMissing = errors.New("certificate template not found for event")
	ErrAlreadyRunning  = errors.New("a run for this event is already in progress")
)
