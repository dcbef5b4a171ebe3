package rulebasedextract

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
	return &Config{Timeout: 5 * time.Second}
}

const sampleNote = `Patient complains of chest pain and shortness of breath.
Diagnosis: Type 2 Diabetes; Hypertension
Metformin 500mg po twice daily
Lisinopril 10mg po daily
HbA1c: 7.8%
Sodium: 134 mmol/L`

func TestHandler_Execute_FullNote(t *testing.T) {
	handler := NewHandler(createTestConfig(), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		NoteText:  sampleNote,
	})

	assert.NoError(t, err)
	assert.True(t, output.FallbackMode)
	assert.Equal(t, models.SourceRuleBased, output.Extraction.Source)

	medNames := map[string]models.Medication{}
	for _, m := range output.Extraction.Medications {
		medNames[m.Name] = m
	}
	assert.Contains(t, medNames, "Metformin")
	assert.Equal(t, "500mg", medNames["Metformin"].Dosage)
	assert.Equal(t, "twice daily", medNames["Metformin"].Frequency)
	assert.Equal(t, "po", medNames["Metformin"].Route)
	assert.Contains(t, medNames, "Lisinopril")

	diagTexts := []string{}
	for _, d := range output.Extraction.Diagnoses {
		diagTexts = append(diagTexts, d.Text)
	}
	assert.Contains(t, diagTexts, "Type 2 Diabetes")
	assert.Contains(t, diagTexts, "Hypertension")

	assert.NotEmpty(t, output.Extraction.Symptoms)

	labNames := []string{}
	for _, l := range output.Extraction.Labs {
		labNames = append(labNames, l.Name)
	}
	assert.Contains(t, labNames, "HbA1c")
}

func TestExtractDiagnoses_SeedWords(t *testing.T) {
	result := extractRuleBased("History notable for asthma and migraine episodes.")

	texts := []string{}
	for _, d := range result.Diagnoses {
		texts = append(texts, d.Text)
	}
	assert.Contains(t, texts, "asthma")
	assert.Contains(t, texts, "migraine")
}

func TestExtractDiagnoses_Dedupes(t *testing.T) {
	result := extractRuleBased("Assessment: hypertension\nImpression: Hypertension")

	count := 0
	for _, d := range result.Diagnoses {
		if d.Text == "hypertension" || d.Text == "Hypertension" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractSymptoms_Triggers(t *testing.T) {
	result := extractRuleBased("Patient reports dizziness, nausea and fatigue.")

	texts := []string{}
	for _, s := range result.Symptoms {
		texts = append(texts, s.Text)
	}
	assert.Contains(t, texts, "dizziness")
	assert.Contains(t, texts, "nausea")
	assert.Contains(t, texts, "fatigue")
}

func TestExtractLabs_ValueAndUnit(t *testing.T) {
	result := extractRuleBased("Labs today. Glucose: 182 mg/dL")

	assert.NotEmpty(t, result.Labs)
	found := false
	for _, l := range result.Labs {
		if l.Value == "182" && l.Unit == "mg/dL" {
			found = true
		}
	}
	assert.True(t, found, "expected a lab with value 182 mg/dL, got %v", result.Labs)
}

func TestHandler_Execute_EmptyText(t *testing.T) {
	handler := NewHandler(createTestConfig(), NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{NoteText: "  "})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyNoteText))
	assert.Nil(t, output)
}
