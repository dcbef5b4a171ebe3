package createnoterecord

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
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
	return &Config{Timeout: 5 * time.Second}
}

func TestHandler_Execute_InsertsRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	extraction := models.ExtractionResult{
		Source:      models.SourceAzure,
		Diagnoses:   []models.Diagnosis{{Text: "Type 2 diabetes", Source: models.SourceAzure}},
		Medications: []models.Medication{{Name: "Metformin", Dosage: "500 mg", Source: models.SourceAzure}},
	}
	entitiesJSON, err := json.Marshal(extraction)
	assert.NoError(t, err)

	mock.ExpectExec("INSERT INTO clinical_notes").
		WithArgs(sqlmock.AnyArg(), "patient-1", "abc123", "Stable patient.", sqlmock.AnyArg(), entitiesJSON, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := NewHandler(createTestConfig(), db, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		TextHash:  "abc123",
		Summary:   "Stable patient.",
		Alerts: []models.Alert{
			{Type: models.AlertTypeAllergy, Severity: models.SeverityCritical, Message: "Penicillin allergy"},
		},
		Extraction: extraction,
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, output.NoteID)
	assert.NotEmpty(t, output.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_DuplicateNote(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO clinical_notes").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "clinical_notes_patient_hash_key"})

	handler := NewHandler(createTestConfig(), db, NewTestLogger(t))

	_, err = handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		TextHash:  "abc123",
		Summary:   "Stable patient.",
	})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateNote))
}

func TestHandler_Execute_InsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO clinical_notes").
		WillReturnError(errors.New("connection refused"))

	handler := NewHandler(createTestConfig(), db, NewTestLogger(t))

	_, err = handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		TextHash:  "abc123",
	})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecordInsertFailed))
}

func TestHandler_Execute_MissingPatientID(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	handler := NewHandler(createTestConfig(), db, NewTestLogger(t))

	_, err = handler.Execute(context.Background(), &Input{TextHash: "abc123"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingPatientID))
}
