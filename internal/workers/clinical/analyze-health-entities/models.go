package analyzehealthentities

import "mednote-workers/internal/models"

type Input struct {
	PatientID string `json:"patientId"`
	NoteText  string `json:"noteText"`
	TextHash  string `json:"textHash"`
}

type Output struct {
	Extraction models.ExtractionResult `json:"extraction"`
	FHIRBundle map[string]interface{}  `json:"fhirBundle"`
	ChunkCount int                     `json:"chunkCount"`
}
