package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"certflow/internal/delivery/http/controllers"
)

// NewRouter initializes the HTTP router with all application routes
func NewRouter(
	eventController *controllers.EventController,
	scheduledEmailController *controllers.ScheduledEmailController,
	notificationController *controllers.NotificationController,
	certificateDir string,
) *http.ServeMux {
	mux := http.NewServeMux()

	// Events
	mux.HandleFunc("POST /events", eventController.CreateEvent)
	mux.HandleFunc("GET /events", eventController.ListEvents)
	mux.HandleFunc("GET /events/{eventID}", eventController.GetEventByID)
	mux.HandleFunc("POST /events/{eventID}/participants", eventController.AddParticipant)
	mux.HandleFunc("POST /events/{eventID}/certificates/run", eventController.RunCertificates)

	// Scheduled emails
	mux.HandleFunc("POST /scheduled-emails", scheduledEmailController.CreateScheduledEmail)
	mux.HandleFunc("GET /scheduled-emails/{id}", scheduledEmailController.GetScheduledEmail)
	mux.HandleFunc("DELETE /scheduled-emails/{id}", scheduledEmailController.CancelScheduledEmail)

	// Notifications
	mux.HandleFunc("GET /notifications/stream", notificationController.Stream)

	// Generated certificate documents
	mux.Handle("GET /certificates/", http.StripPrefix("/certificates/", http.FileServer(http.Dir(certificateDir))))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
