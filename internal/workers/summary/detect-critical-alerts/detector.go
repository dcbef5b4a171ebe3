package detectcriticalalerts

import (
	"fmt"
	"strconv"
	"strings"

	"mednote-workers/internal/models"
)

// referenceRange is a built-in normal range for a well-known observation.
type referenceRange struct {
	unit string
	low  float64
	high float64
}

// Ranges are matched by substring against the lowercased observation code.
var referenceRanges = map[string]referenceRange{
	"hba1c":     {unit: "%", low: 4.0, high: 6.5},
	"glucose":   {unit: "mg/dL", low: 70, high: 180},
	"sodium":    {unit: "mmol/L", low: 135, high: 145},
	"potassium": {unit: "mmol/L", low: 3.5, high: 5.2},
	"creatinine": {unit: "mg/dL", low: 0.6, high: 1.3},
}

// interactionPairs holds known interacting medication pairs, both lowercase.
var interactionPairs = [][2]string{
	{"warfarin", "aspirin"},
	{"warfarin", "ibuprofen"},
	{"methotrexate", "ibuprofen"},
	{"lisinopril", "spironolactone"},
	{"sildenafil", "nitroglycerin"},
}

// detectAlerts runs the deterministic scan over the compact bundle and the
// extraction result. In fallback mode the bundle is empty and the extraction
// medications carry the interaction scan alone.
func detectAlerts(input *Input) []models.Alert {
	alerts := []models.Alert{}

	alerts = append(alerts, allergyAlerts(input.CompactBundle.AllergyIntolerance)...)
	alerts = append(alerts, observationAlerts(input.CompactBundle.Observation)...)
	alerts = append(alerts, interactionAlerts(medicationNames(input))...)

	return alerts
}

func allergyAlerts(allergies []models.CompactAllergy) []models.Alert {
	var alerts []models.Alert
	for _, a := range allergies {
		criticality := strings.ToLower(a.Criticality)
		if criticality == "high" || criticality == "unable-to-assess" {
			alerts = append(alerts, models.Alert{
				Type:     models.AlertTypeAllergy,
				Severity: models.SeverityCritical,
				Message:  fmt.Sprintf("Allergy to %s with criticality %s", a.Substance, a.Criticality),
				Source:   "AllergyIntolerance",
			})
		}
	}
	return alerts
}

func observationAlerts(observations []models.CompactObservation) []models.Alert {
	var alerts []models.Alert
	for _, obs := range observations {
		value, ok := numericValue(obs.Value)
		if !ok {
			continue
		}

		code := strings.ToLower(obs.Code)
		for name, rng := range referenceRanges {
			if !strings.Contains(code, name) {
				continue
			}
			if obs.Unit != "" && !strings.EqualFold(obs.Unit, rng.unit) {
				continue
			}
			if value < rng.low || value > rng.high {
				alerts = append(alerts, models.Alert{
					Type:     models.AlertTypeAbnormalValue,
					Severity: models.SeverityWarning,
					Message: fmt.Sprintf("%s %v %s outside reference range %g-%g %s",
						obs.Code, obs.Value, obs.Unit, rng.low, rng.high, rng.unit),
					Source: "Observation",
				})
			}
			break
		}
	}
	return alerts
}

func interactionAlerts(medications []string) []models.Alert {
	present := make(map[string]bool, len(medications))
	for _, m := range medications {
		present[strings.ToLower(m)] = true
	}

	var alerts []models.Alert
	for _, pair := range interactionPairs {
		if present[pair[0]] && present[pair[1]] {
			alerts = append(alerts, models.Alert{
				Type:     models.AlertTypeDrugInteraction,
				Severity: models.SeverityCritical,
				Message:  fmt.Sprintf("Potential interaction between %s and %s", pair[0], pair[1]),
				Source:   "MedicationStatement",
			})
		}
	}
	return alerts
}

func medicationNames(input *Input) []string {
	var names []string
	for _, m := range input.CompactBundle.MedicationStatement {
		if m.Medication != "" {
			names = append(names, m.Medication)
		}
	}
	for _, m := range input.Extraction.Medications {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}

func numericValue(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// overallPriority is high when any critical alert is present.
func overallPriority(alerts []models.Alert) string {
	for _, a := range alerts {
		if a.Severity == models.SeverityCritical {
			return models.PriorityHigh
		}
	}
	return models.PriorityNormal
}
