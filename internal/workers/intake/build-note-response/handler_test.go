package buildnoteresponse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mednote-workers/internal/models"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t *testing.T
}

func NewTestLogger(t *testing.T) *TestLogger { return &TestLogger{t: t} }

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger { return l }

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, AppVersion: "1.2.3"}
}

func TestHandler_Execute_SuccessResponse(t *testing.T) {
	handler := NewHandler(createTestConfig(), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		NoteID:    "note-1",
		Summary:   "Stable patient on Metformin.",
		Alerts: []models.Alert{
			{Type: models.AlertTypeAbnormalValue, Severity: models.SeverityWarning, Message: "HbA1c above range"},
		},
		Extraction: models.ExtractionResult{
			Source: models.SourceAzure,
			Diagnoses: []models.Diagnosis{
				{Text: "Type 2 diabetes mellitus", Source: models.SourceAzure},
			},
			Medications: []models.Medication{
				{Name: "Metformin", Source: models.SourceAzure},
			},
		},
	})

	assert.NoError(t, err)
	response := output.Response
	assert.Equal(t, "success", response.Status)
	assert.Equal(t, "patient-1", response.PatientID)
	assert.Equal(t, "note-1", response.NoteID)
	assert.Equal(t, 1, response.EntityCounts.Diagnoses)
	assert.Equal(t, 1, response.EntityCounts.Medications)
	assert.Equal(t, 0, response.EntityCounts.Symptoms)
	assert.Equal(t, "azure", response.Metadata.Source)
	assert.Equal(t, "1.2.3", response.Metadata.Version)
	assert.NotEmpty(t, response.Metadata.Timestamp)
}

func TestHandler_Execute_FallbackIsPartial(t *testing.T) {
	handler := NewHandler(createTestConfig(), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		PatientID:    "patient-1",
		NoteID:       "note-1",
		Summary:      "Summary from raw note.",
		FallbackMode: true,
		Extraction:   models.ExtractionResult{Source: models.SourceRuleBased},
	})

	assert.NoError(t, err)
	assert.Equal(t, "partial", output.Response.Status)
	assert.True(t, output.Response.FallbackMode)
	assert.Equal(t, "rule_based", output.Response.Metadata.Source)
}

func TestHandler_Execute_NilAlertsBecomeEmptySlice(t *testing.T) {
	handler := NewHandler(createTestConfig(), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		NoteID:    "note-1",
		Summary:   "Summary.",
	})

	assert.NoError(t, err)
	assert.NotNil(t, output.Response.Alerts)
	assert.Empty(t, output.Response.Alerts)
}

func TestHandler_Execute_MissingNoteID(t *testing.T) {
	handler := NewHandler(createTestConfig(), NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{PatientID: "patient-1"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingNoteID))
}
