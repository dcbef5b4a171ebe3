package compactfhirbundle

import "mednote-workers/internal/models"

type Input struct {
	PatientID  string                 `json:"patientId"`
	NoteText   string                 `json:"noteText"`
	FHIRBundle map[string]interface{} `json:"fhirBundle"`
}

type Output struct {
	CompactBundle models.CompactBundle `json:"compactBundle"`
	FallbackMode  bool                 `json:"fallbackMode"`
	ResourceCount int                  `json:"resourceCount"`
}
