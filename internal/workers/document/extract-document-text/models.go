package extractdocumenttext

import "mednote-workers/internal/models"

type Input struct {
	PatientID   string               `json:"patientId"`
	NoteText    string               `json:"noteText"`
	HasDocument bool                 `json:"hasDocument"`
	Document    *models.NoteDocument `json:"document"`
}

type Output struct {
	NoteText  string `json:"noteText"`
	TextHash  string `json:"textHash"`
	Cached    bool   `json:"cached"`
	CharCount int    `json:"charCount"`
}
