package rulebasedextract

import "mednote-workers/internal/models"

type Input struct {
	PatientID string `json:"patientId"`
	NoteText  string `json:"noteText"`
}

type Output struct {
	Extraction   models.ExtractionResult `json:"extraction"`
	FallbackMode bool                    `json:"fallbackMode"`
}
