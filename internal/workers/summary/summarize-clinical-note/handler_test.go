package summarizeclinicalnote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mednote-workers/internal/common/azure"
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

type fakeCompleter struct {
	response string
	err      error
	messages []azure.ChatMessage
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, messages []azure.ChatMessage) (string, error) {
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func TestHandler_Execute_BundlePrompt(t *testing.T) {
	completer := &fakeCompleter{response: "Patient has well controlled type 2 diabetes on Metformin."}
	handler := NewHandler(createTestConfig(), completer, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		CompactBundle: models.CompactBundle{
			MedicationStatement: []models.CompactMedication{
				{Medication: "Metformin", Dosage: []string{"500 mg", "twice daily"}},
			},
			Condition: []models.CompactCondition{
				{Code: "Type 2 diabetes mellitus", ClinicalStatus: "active"},
			},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, "Patient has well controlled type 2 diabetes on Metformin.", output.Summary)

	assert.Len(t, completer.messages, 2)
	assert.Equal(t, "system", completer.messages[0].Role)
	assert.Equal(t, "You are a helpful clinical AI assistant.", completer.messages[0].Content)
	assert.Contains(t, completer.messages[1].Content, "FHIR bundle in JSON format")
	assert.Contains(t, completer.messages[1].Content, "Metformin")
	assert.Contains(t, completer.messages[1].Content, "Type 2 diabetes mellitus")
}

func TestHandler_Execute_FallbackPrompt(t *testing.T) {
	completer := &fakeCompleter{response: "Summary from raw note."}
	handler := NewHandler(createTestConfig(), completer, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		PatientID:    "patient-2",
		NoteText:     "Patient complains of headache. Takes Ibuprofen 200 mg PRN.",
		FallbackMode: true,
	})

	assert.NoError(t, err)
	assert.Equal(t, "Summary from raw note.", output.Summary)

	assert.Contains(t, completer.messages[1].Content, "clinical note text")
	assert.Contains(t, completer.messages[1].Content, "Ibuprofen 200 mg PRN")
	assert.NotContains(t, completer.messages[1].Content, "FHIR bundle")
}

func TestHandler_Execute_TrimsWhitespace(t *testing.T) {
	completer := &fakeCompleter{response: "  Stable patient.\n"}
	handler := NewHandler(createTestConfig(), completer, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{PatientID: "p", FallbackMode: true, NoteText: "note"})

	assert.NoError(t, err)
	assert.Equal(t, "Stable patient.", output.Summary)
}

func TestHandler_Execute_EmptyCompletion(t *testing.T) {
	completer := &fakeCompleter{response: "   \n"}
	handler := NewHandler(createTestConfig(), completer, NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{PatientID: "p", FallbackMode: true, NoteText: "note"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrSummarizationFailed))
}

func TestHandler_Execute_ServiceError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("chat completion request failed with status 500")}
	handler := NewHandler(createTestConfig(), completer, NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{PatientID: "p", FallbackMode: true, NoteText: "note"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrSummarizationFailed))
}

func TestHandler_Execute_TimeoutMapsToLLMTimeout(t *testing.T) {
	completer := &fakeCompleter{err: context.DeadlineExceeded}
	handler := NewHandler(createTestConfig(), completer, NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{PatientID: "p", FallbackMode: true, NoteText: "note"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrLLMTimeout))
}
