package controllers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"certflow/internal/adapters/notify"
	"certflow/internal/delivery/http/helpers"
)

type NotificationController struct {
	Logger *slog.Logger
	Hub    *notify.Hub
}

func NewNotificationController(logger *slog.Logger, hub *notify.Hub) *NotificationController {
	return &NotificationController{Logger: logger, Hub: hub}
}

// Stream godoc
// @Summary Stream notifications
// @Description Server-sent event stream of certificate and email notifications. Each event's name is the notification name and its data is the JSON payload.
// @Tags notifications
// @Produce text/event-stream
// @Success 200 {string} string "SSE stream"
// @Router /notifications/stream [get]
func (c *NotificationController) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsubscribe := c.Hub.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(map[string]any{
				"message": n.Message,
				"payload": n.Payload,
			})
			if err != nil {
				c.Logger.Error("failed to encode notification", "event", n.Name, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Name, data)
			flusher.Flush()
		}
	}
}
