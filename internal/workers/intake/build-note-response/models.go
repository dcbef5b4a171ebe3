package buildnoteresponse

import "mednote-workers/internal/models"

type Input struct {
	PatientID    string                  `json:"patientId"`
	NoteID       string                  `json:"noteId"`
	Summary      string                  `json:"summary"`
	Alerts       []models.Alert          `json:"alerts"`
	Extraction   models.ExtractionResult `json:"extraction"`
	FallbackMode bool                    `json:"fallbackMode"`
}

type Output struct {
	Response ResponsePayload `json:"response"`
}

type ResponsePayload struct {
	PatientID    string              `json:"patientId"`
	NoteID       string              `json:"noteId"`
	Status       string              `json:"status"` // "success" or "partial"
	Summary      string              `json:"summary"`
	Alerts       []models.Alert      `json:"alerts"`
	EntityCounts models.EntityCounts `json:"entityCounts"`
	FallbackMode bool                `json:"fallbackMode"`
	Metadata     ResponseMetadata    `json:"metadata"`
}

type ResponseMetadata struct {
	Timestamp string `json:"timestamp"` // ISO 8601
	Version   string `json:"version"`
	Source    string `json:"source"` // extraction source, "azure" or "rule_based"
}
