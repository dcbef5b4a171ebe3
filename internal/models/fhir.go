package models

// CompactBundle is the reduced FHIR bundle used for summarization. Only the
// four resource types relevant to the clinical summary are kept; empty
// categories are omitted from the JSON entirely.
type CompactBundle struct {
	MedicationStatement []CompactMedication  `json:"MedicationStatement,omitempty"`
	Observation         []CompactObservation `json:"Observation,omitempty"`
	Condition           []CompactCondition   `json:"Condition,omitempty"`
	AllergyIntolerance  []CompactAllergy     `json:"AllergyIntolerance,omitempty"`
}

// IsEmpty reports whether no resources survived compaction.
func (b CompactBundle) IsEmpty() bool {
	return len(b.MedicationStatement) == 0 &&
		len(b.Observation) == 0 &&
		len(b.Condition) == 0 &&
		len(b.AllergyIntolerance) == 0
}

type CompactMedication struct {
	Medication string   `json:"medication,omitempty"`
	Dosage     []string `json:"dosage,omitempty"`
}

type CompactObservation struct {
	Code  string      `json:"code,omitempty"`
	Value interface{} `json:"value,omitempty"`
	Unit  string      `json:"unit,omitempty"`
}

type CompactCondition struct {
	Code           string `json:"code,omitempty"`
	ClinicalStatus string `json:"clinicalStatus,omitempty"`
}

type CompactAllergy struct {
	Substance   string `json:"substance,omitempty"`
	Criticality string `json:"criticality,omitempty"`
}
