package validatenoterequest

import (
	"mednote-workers/internal/common/validation"
	"mednote-workers/internal/models"
)

type Input struct {
	PatientID string               `json:"patientId"`
	NoteText  string               `json:"noteText"`
	Document  *models.NoteDocument `json:"document"`
}

type Output struct {
	Valid       bool   `json:"valid"`
	HasDocument bool   `json:"hasDocument"`
	PatientID   string `json:"patientId"`
	NoteText    string `json:"noteText,omitempty"`
}

// GetInputSchema describes the shape of the note request variables. Other
// process variables may ride along on the job, so extras are allowed.
func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"patientId": {Type: "string"},
			"noteText":  {Type: "string"},
			"document": {
				Type: "object",
				Properties: map[string]validation.Property{
					"content":     {Type: "string"},
					"contentType": {Type: "string"},
					"filename":    {Type: "string"},
				},
			},
		},
		AdditionalProperties: true,
	}
}
