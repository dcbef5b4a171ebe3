package sendalertnotification

import "mednote-workers/internal/models"

type Input struct {
	PatientID string         `json:"patientId"`
	NoteID    string         `json:"noteId"`
	Alerts    []models.Alert `json:"alerts"`
	Priority  string         `json:"priority,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "skipped"
	SentAt         string `json:"sentAt"` // ISO 8601
}

// Statuses
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)
