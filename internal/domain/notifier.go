package domain

// Notification event names pushed to connected UI clients.
const (
	NotifyCertificateGenerated  = "certificateGenerated"
	NotifyCertificatesGenerated = "certificatesGenerated"
	NotifyEmailsSent            = "emailsSent"
)

// Notification is a best-effort message for UI observers.
type Notification struct {
	Name    string         `json:"name"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Notifier publishes notifications to observers. Publishing is
// fire-and-forget: failure to notify must never roll back or block the
// underlying state change.
type Notifier interface {
	Publish(n Notification)
}
