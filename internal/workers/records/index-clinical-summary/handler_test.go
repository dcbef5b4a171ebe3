package indexclinicalsummary

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	return &Config{Timeout: 5 * time.Second, IndexName: "clinical-summaries"}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{server.URL},
	})
	require.NoError(t, err)
	return client
}

func esHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
}

func TestHandler_Execute_IndexesDocument(t *testing.T) {
	var captured SummaryDocument
	var capturedPath string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		esHeaders(w)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"_index":"clinical-summaries","_id":"note-1","result":"created"}`))
	})

	handler := NewHandler(createTestConfig(), client, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		NoteID:    "note-1",
		PatientID: "patient-1",
		Summary:   "Patient is stable on Metformin.",
		Extraction: models.ExtractionResult{
			Source: models.SourceAzure,
			Diagnoses: []models.Diagnosis{
				{Text: "Type 2 diabetes mellitus", Source: models.SourceAzure},
			},
			Medications: []models.Medication{
				{Name: "Metformin", Source: models.SourceAzure},
			},
		},
		Alerts: []models.Alert{
			{Type: models.AlertTypeAbnormalValue, Severity: models.SeverityWarning, Message: "HbA1c above range"},
		},
	})

	assert.NoError(t, err)
	assert.True(t, output.Indexed)
	assert.Equal(t, "clinical-summaries", output.IndexName)
	assert.Equal(t, "note-1", output.DocID)

	assert.Equal(t, "/clinical-summaries/_doc/note-1", capturedPath)
	assert.Equal(t, "patient-1", captured.PatientID)
	assert.Equal(t, []string{"Type 2 diabetes mellitus"}, captured.Diagnoses)
	assert.Equal(t, []string{"Metformin"}, captured.Medications)
	assert.Equal(t, []string{"HbA1c above range"}, captured.Alerts)
	assert.NotEmpty(t, captured.ProcessedAt)
}

func TestHandler_Execute_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		esHeaders(w)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"internal_error"}}`))
	})

	handler := NewHandler(createTestConfig(), client, NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{
		NoteID:    "note-1",
		PatientID: "patient-1",
		Summary:   "summary",
	})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexingFailed))
}

func TestHandler_Execute_MissingNoteID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	handler := NewHandler(createTestConfig(), client, NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{PatientID: "patient-1"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingNoteID))
}
