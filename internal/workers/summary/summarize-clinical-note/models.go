package summarizeclinicalnote

import "mednote-workers/internal/models"

type Input struct {
	PatientID     string               `json:"patientId"`
	NoteText      string               `json:"noteText"`
	CompactBundle models.CompactBundle `json:"compactBundle"`
	FallbackMode  bool                 `json:"fallbackMode"`
}

type Output struct {
	Summary string `json:"summary"`
}
