// Package notify shows notifications on dashboard pages and delivers alerts
// to external sinks (Slack, MQTT, Kafka).
package notify

import (
	"time"

	"github.com/mmuteeullah/CamWatch/internal/camera"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// AlertClass maps a severity to its alert style; errors render as "danger".
func (s Severity) AlertClass() string {
	if s == SeverityError {
		return "danger"
	}
	if s == "" {
		return string(SeverityInfo)
	}
	return string(s)
}

// SeverityFor picks the severity used when a camera changes to status.
func SeverityFor(status camera.Status) Severity {
	switch status {
	case camera.StatusError:
		return SeverityError
	case camera.StatusOffline:
		return SeverityWarning
	default:
		return SeveritySuccess
	}
}

// Notification is a message shown to a user or delivered to a sink.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	HTML      string    `json:"html,omitempty"` // sanitized markup for in-page alerts
	Severity  Severity  `json:"severity"`
	Class     string    `json:"class"`
	CameraID  camera.ID `json:"camera_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
