package indexclinicalsummary

import "mednote-workers/internal/models"

type Input struct {
	NoteID     string                  `json:"noteId"`
	PatientID  string                  `json:"patientId"`
	Summary    string                  `json:"summary"`
	Extraction models.ExtractionResult `json:"extraction"`
	Alerts     []models.Alert          `json:"alerts"`
}

// SummaryDocument is the shape stored in the search index.
type SummaryDocument struct {
	NoteID      string   `json:"noteId"`
	PatientID   string   `json:"patientId"`
	Summary     string   `json:"summary"`
	Diagnoses   []string `json:"diagnoses"`
	Medications []string `json:"medications"`
	Alerts      []string `json:"alerts"`
	ProcessedAt string   `json:"processedAt"`
}

type Output struct {
	Indexed   bool   `json:"indexed"`
	IndexName string `json:"indexName"`
	DocID     string `json:"docId"`
}
