package models

// Alert severities and types produced by the critical alert scan.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"

	AlertTypeAllergy         = "allergy"
	AlertTypeAbnormalValue   = "abnormal_value"
	AlertTypeDrugInteraction = "drug_interaction"

	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// Alert is a single finding from the deterministic alert scan.
type Alert struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Source   string `json:"source,omitempty"` // resource that triggered the alert
}
