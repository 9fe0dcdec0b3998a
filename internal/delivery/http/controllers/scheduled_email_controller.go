package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"certflow/internal/delivery/http/helpers"
	"certflow/internal/domain"
)

// CreateScheduledEmailRequest is the request body for POST /scheduled-emails.
type CreateScheduledEmailRequest struct {
	TemplateID   string    `json:"template_id"`
	Recipients   []string  `json:"recipients"`
	ScheduleDate time.Time `json:"schedule_date"`
	CreatedBy    string    `json:"created_by"`
}

// Validate implements Validator.
func (c CreateScheduledEmailRequest) Validate() []string {
	var errs []string
	if c.TemplateID == "" {
		errs = append(errs, "template_id is required")
	}
	if len(c.Recipients) == 0 {
		errs = append(errs, "recipients must not be empty")
	}
	if c.ScheduleDate.IsZero() {
		errs = append(errs, "schedule_date is required")
	}
	if c.CreatedBy == "" {
		errs = append(errs, "created_by is required")
	}
	return errs
}

type ScheduledEmailController struct {
	Logger     *slog.Logger
	Repo       domain.ScheduledEmailRepository
	Templates  domain.EmailTemplateRepository
	Dispatcher domain.ScheduledEmailDispatcher
}

func NewScheduledEmailController(
	logger *slog.Logger,
	repo domain.ScheduledEmailRepository,
	templates domain.EmailTemplateRepository,
	dispatcher domain.ScheduledEmailDispatcher,
) *ScheduledEmailController {
	return &ScheduledEmailController{
		Logger:     logger,
		Repo:       repo,
		Templates:  templates,
		Dispatcher: dispatcher,
	}
}

// CreateScheduledEmail godoc
// @Summary Schedule a bulk email
// @Description Persists a pending scheduled email and arms its dispatch timer. A schedule date in the past dispatches immediately.
// @Tags scheduled-emails
// @Accept json
// @Produce json
// @Param scheduledEmail body CreateScheduledEmailRequest true "Scheduled email data"
// @Success 201 {object} helpers.APIResponse "data contains the scheduled email record"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found (unknown template)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /scheduled-emails [post]
func (c *ScheduledEmailController) CreateScheduledEmail(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduledEmailRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	// Reject unknown templates up front rather than at fire time.
	if _, err := c.Templates.GetByID(r.Context(), req.TemplateID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "email template not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}

	scheduled := &domain.ScheduledEmail{
		TemplateID:   req.TemplateID,
		Recipients:   req.Recipients,
		ScheduleDate: req.ScheduleDate,
		Status:       domain.ScheduleStatusPending,
		CreatedBy:    req.CreatedBy,
		CreatedAt:    time.Now(),
	}
	if err := c.Repo.Create(r.Context(), scheduled); err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}

	if err := c.Dispatcher.Schedule(r.Context(), scheduled.ID); err != nil {
		// The record exists and will be picked up by startup reconciliation;
		// surface the error anyway so the caller knows the timer is not armed.
		c.Logger.ErrorContext(r.Context(), "failed to arm dispatch timer", "scheduled_email_id", scheduled.ID, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}

	helpers.WriteJSONSuccess(w, http.StatusCreated, scheduled)
}

// GetScheduledEmail godoc
// @Summary Get a scheduled email by ID
// @Tags scheduled-emails
// @Produce json
// @Param id path string true "Scheduled email ID"
// @Success 200 {object} helpers.APIResponse "data contains the scheduled email record"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /scheduled-emails/{id} [get]
func (c *ScheduledEmailController) GetScheduledEmail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing id")
		return
	}
	scheduled, err := c.Repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "scheduled email not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, scheduled)
}

// CancelScheduledEmail godoc
// @Summary Cancel a pending scheduled email
// @Description Disarms the dispatch timer and moves the record to cancelled. Cancelling an email that already fired or was already cancelled reports cancelled=false, not an error.
// @Tags scheduled-emails
// @Produce json
// @Param id path string true "Scheduled email ID"
// @Success 200 {object} helpers.APIResponse "data contains the cancel result"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /scheduled-emails/{id} [delete]
func (c *ScheduledEmailController) CancelScheduledEmail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing id")
		return
	}

	// Disarm the timer first so the record cannot fire mid-cancel, then
	// retire the durable record. The pending-status guard in UpdateStatus
	// makes a lost race (fired just before cancel) a clean no-op.
	result := c.Dispatcher.Cancel(id)
	err := c.Repo.UpdateStatus(r.Context(), id, domain.ScheduleStatusCancelled, nil, "")
	switch {
	case err == nil:
		helpers.WriteJSONSuccess(w, http.StatusOK, domain.CancelResult{
			Cancelled: true,
			Message:   "scheduled email cancelled",
		})
	case errors.Is(err, domain.ErrNotFound):
		if result.Cancelled {
			// Timer was armed but the record is no longer pending; report
			// what actually happened to the record.
			helpers.WriteJSONSuccess(w, http.StatusOK, domain.CancelResult{
				Cancelled: false,
				Message:   "scheduled email is no longer pending",
			})
			return
		}
		helpers.WriteJSONSuccess(w, http.StatusOK, result)
	default:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
	}
}
