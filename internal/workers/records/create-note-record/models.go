package createnoterecord

import "mednote-workers/internal/models"

type Input struct {
	PatientID  string                  `json:"patientId"`
	TextHash   string                  `json:"textHash"`
	Summary    string                  `json:"summary"`
	Alerts     []models.Alert          `json:"alerts"`
	Extraction models.ExtractionResult `json:"extraction"`
}

type Output struct {
	NoteID    string `json:"noteId"`
	CreatedAt string `json:"createdAt"`
}
