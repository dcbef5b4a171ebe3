package detectcriticalalerts

import "mednote-workers/internal/models"

type Input struct {
	PatientID     string                  `json:"patientId"`
	CompactBundle models.CompactBundle    `json:"compactBundle"`
	Extraction    models.ExtractionResult `json:"extraction"`
	FallbackMode  bool                    `json:"fallbackMode"`
}

type Output struct {
	Alerts    []models.Alert `json:"alerts"`
	HasAlerts bool           `json:"hasAlerts"`
	Priority  string         `json:"priority"`
}
