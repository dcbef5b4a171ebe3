package analyzehealthentities

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"mednote-workers/internal/common/azure"
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

// fakeAnalyzer implements HealthAnalyzer
type fakeAnalyzer struct {
	result   *azure.AnalyzeJobResult
	err      error
	calls    int
	lastDocs []azure.AnalysisDocument
}

func (f *fakeAnalyzer) AnalyzeHealthcare(ctx context.Context, documents []azure.AnalysisDocument) (*azure.AnalyzeJobResult, error) {
	f.calls++
	f.lastDocs = documents
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func createTestConfig() *Config {
	return &Config{
		Timeout:       10 * time.Second,
		MaxChunkChars: 120_000,
		BatchSize:     25,
		Language:      "en",
	}
}

func succeededResult(doc azure.HealthcareDocument) *azure.AnalyzeJobResult {
	result := &azure.AnalyzeJobResult{Status: azure.JobStatusSucceeded}
	result.Tasks.Items = []azure.TaskItem{
		{
			Kind:   "HealthcareLROResults",
			Status: azure.JobStatusSucceeded,
			Results: azure.HealthcareResults{
				Documents: []azure.HealthcareDocument{doc},
			},
		},
	}
	return result
}

func sampleDocument() azure.HealthcareDocument {
	return azure.HealthcareDocument{
		ID: "0",
		Entities: []azure.HealthcareEntity{
			{Text: "Ibuprofen", Category: "MedicationName", Offset: 23, ConfidenceScore: 0.99, Name: "ibuprofen"},
			{Text: "200mg", Category: "Dosage", Offset: 17},
			{Text: "twice daily", Category: "Frequency", Offset: 33},
			{Text: "hypertension", Category: "Diagnosis", Offset: 60, ConfidenceScore: 0.95},
			{Text: "headache", Category: "SymptomOrSign", Offset: 80, ConfidenceScore: 0.9},
			{Text: "HbA1c", Category: "ExaminationName", Offset: 100},
			{Text: "7.2", Category: "MeasurementValue", Offset: 107},
			{Text: "%", Category: "MeasurementUnit", Offset: 110},
		},
		Relations: []azure.HealthcareRelation{
			{
				RelationType: "DosageOfMedication",
				Entities: []azure.RelationEntity{
					{Ref: "#/results/documents/0/entities/0", Role: "Medication"},
					{Ref: "#/results/documents/0/entities/1", Role: "Dosage"},
				},
			},
			{
				RelationType: "FrequencyOfMedication",
				Entities: []azure.RelationEntity{
					{Ref: "#/results/documents/0/entities/0", Role: "Medication"},
					{Ref: "#/results/documents/0/entities/2", Role: "Frequency"},
				},
			},
			{
				RelationType: "ValueOfExamination",
				Entities: []azure.RelationEntity{
					{Ref: "#/results/documents/0/entities/5", Role: "Examination"},
					{Ref: "#/results/documents/0/entities/6", Role: "MeasurementValue"},
				},
			},
			{
				RelationType: "UnitOfExamination",
				Entities: []azure.RelationEntity{
					{Ref: "#/results/documents/0/entities/5", Role: "Examination"},
					{Ref: "#/results/documents/0/entities/7", Role: "MeasurementUnit"},
				},
			},
		},
		FHIRBundle: map[string]interface{}{
			"resourceType": "Bundle",
			"entry":        []interface{}{},
		},
	}
}

func TestHandler_Execute_CollectsEntitiesAndRelations(t *testing.T) {
	analyzer := &fakeAnalyzer{result: succeededResult(sampleDocument())}
	handler := NewHandler(createTestConfig(), analyzer, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		NoteText:  "The doctor prescribed 200mg Ibuprofen twice daily for hypertension. Reports headache. HbA1c: 7.2%",
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, analyzer.calls)
	assert.Equal(t, "azure", output.Extraction.Source)

	assert.Len(t, output.Extraction.Medications, 1)
	med := output.Extraction.Medications[0]
	assert.Equal(t, "Ibuprofen", med.Name)
	assert.Equal(t, "200mg", med.Dosage)
	assert.Equal(t, "twice daily", med.Frequency)

	assert.Len(t, output.Extraction.Diagnoses, 1)
	assert.Equal(t, "hypertension", output.Extraction.Diagnoses[0].Text)

	assert.Len(t, output.Extraction.Symptoms, 1)
	assert.Equal(t, "headache", output.Extraction.Symptoms[0].Text)

	assert.Len(t, output.Extraction.Labs, 1)
	assert.Equal(t, "HbA1c", output.Extraction.Labs[0].Name)
	assert.Equal(t, "7.2", output.Extraction.Labs[0].Value)
	assert.Equal(t, "%", output.Extraction.Labs[0].Unit)

	assert.Equal(t, "Bundle", output.FHIRBundle["resourceType"])
}

func TestHandler_Execute_MissingFHIRBundle(t *testing.T) {
	doc := sampleDocument()
	doc.FHIRBundle = nil
	analyzer := &fakeAnalyzer{result: succeededResult(doc)}
	handler := NewHandler(createTestConfig(), analyzer, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{NoteText: "some note"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrFHIRBundleMissing))
	assert.Nil(t, output)
}

func TestHandler_Execute_JobFailed(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &azure.AnalyzeJobResult{Status: azure.JobStatusFailed}}
	handler := NewHandler(createTestConfig(), analyzer, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{NoteText: "some note"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrAnalysisJobFailed))
	assert.Nil(t, output)
}

func TestHandler_Execute_ServiceError(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("job submission returned status 500")}
	handler := NewHandler(createTestConfig(), analyzer, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{NoteText: "some note"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrAnalysisFailed))
	assert.Nil(t, output)
}

func TestHandler_Execute_Timeout(t *testing.T) {
	analyzer := &fakeAnalyzer{err: context.DeadlineExceeded}
	handler := NewHandler(createTestConfig(), analyzer, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{NoteText: "some note"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrAnalysisTimeout))
	assert.Nil(t, output)
}

func TestHandler_Execute_EmptyNote(t *testing.T) {
	handler := NewHandler(createTestConfig(), &fakeAnalyzer{}, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{NoteText: "   "})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrAnalysisJobFailed))
	assert.Nil(t, output)
}

func TestChunkText_Short(t *testing.T) {
	chunks := chunkText("short note", 120_000)
	assert.Equal(t, []string{"short note"}, chunks)
}

func TestChunkText_BreaksAtNewline(t *testing.T) {
	line := strings.Repeat("x", 9_000)
	text := line + "\n" + line + "\n" + line

	chunks := chunkText(text, 10_000)

	assert.True(t, len(chunks) >= 2)
	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10_000)
		total += len(c)
	}
	assert.Equal(t, len(text), total)
}

func TestChunkText_MultiByteTextKeepsRuneBoundaries(t *testing.T) {
	// Each °C is two bytes; byte-offset cuts would land inside a rune.
	line := strings.Repeat("Temp 38.5°C ", 900)
	text := line + "\n" + line + "\n" + line

	chunks := chunkText(text, 10_000)

	assert.True(t, len(chunks) >= 2)
	var rejoined strings.Builder
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, len([]rune(c)), 10_000)
		rejoined.WriteString(c)
	}
	assert.Equal(t, text, rejoined.String())
}

func TestChunkText_DocumentIDsAreSequential(t *testing.T) {
	// Two chunks should be submitted as documents 0 and 1
	line := strings.Repeat("y", 9_000)
	text := line + "\n" + line

	cfg := createTestConfig()
	cfg.MaxChunkChars = 10_000

	analyzer := &fakeAnalyzer{result: succeededResult(sampleDocument())}
	handler := NewHandler(cfg, analyzer, NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{NoteText: text})

	assert.NoError(t, err)
	assert.Equal(t, "0", analyzer.lastDocs[0].ID)
	assert.Equal(t, "1", analyzer.lastDocs[1].ID)
}
