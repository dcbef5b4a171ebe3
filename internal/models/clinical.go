package models

// Extraction sources. Azure is the primary path; rule-based is the fallback
// when the Language service is unavailable.
const (
	SourceAzure     = "azure"
	SourceRuleBased = "rule_based"
)

// Medication is a medication mention enriched with relation attributes.
type Medication struct {
	Name       string     `json:"name"`
	Normalized string     `json:"normalized,omitempty"`
	Dosage     string     `json:"dosage,omitempty"`
	Frequency  string     `json:"frequency,omitempty"`
	Route      string     `json:"route,omitempty"`
	Form       string     `json:"form,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Assertion  *Assertion `json:"assertion,omitempty"`
	Source     string     `json:"source"`
}

// Diagnosis is a diagnosis mention.
type Diagnosis struct {
	Text       string     `json:"text"`
	Normalized string     `json:"normalized,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Assertion  *Assertion `json:"assertion,omitempty"`
	Source     string     `json:"source"`
}

// Symptom is a symptom or sign mention.
type Symptom struct {
	Text       string     `json:"text"`
	Normalized string     `json:"normalized,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Assertion  *Assertion `json:"assertion,omitempty"`
	Source     string     `json:"source"`
}

// Lab is an examination mention with its measurement, when related.
type Lab struct {
	Name       string  `json:"name"`
	Value      string  `json:"value,omitempty"`
	Unit       string  `json:"unit,omitempty"`
	Operator   string  `json:"operator,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Source     string  `json:"source"`
}

// Assertion carries certainty qualifiers attached to an entity.
type Assertion struct {
	Certainty      string `json:"certainty,omitempty"`
	Conditionality string `json:"conditionality,omitempty"`
	Association    string `json:"association,omitempty"`
}

// ExtractionResult groups the clinical entities extracted from one note.
type ExtractionResult struct {
	Source      string       `json:"source"`
	Diagnoses   []Diagnosis  `json:"diagnoses"`
	Medications []Medication `json:"medications"`
	Symptoms    []Symptom    `json:"symptoms"`
	Labs        []Lab        `json:"labs"`
}

// EntityCounts summarizes an extraction for the terminal response.
type EntityCounts struct {
	Diagnoses   int `json:"diagnoses"`
	Medications int `json:"medications"`
	Symptoms    int `json:"symptoms"`
	Labs        int `json:"labs"`
}

// Counts returns the per-category entity counts.
func (r ExtractionResult) Counts() EntityCounts {
	return EntityCounts{
		Diagnoses:   len(r.Diagnoses),
		Medications: len(r.Medications),
		Symptoms:    len(r.Symptoms),
		Labs:        len(r.Labs),
	}
}
