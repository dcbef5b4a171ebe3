package compactfhirbundle

import (
	"errors"
	"fmt"

	"mednote-workers/internal/models"
)

var ErrNotABundle = errors.New("INVALID_FHIR_BUNDLE")

// compactBundle reduces a raw FHIR bundle to the four resource types the
// summarizer consumes. Entries of other types are dropped silently.
func compactBundle(bundle map[string]interface{}) (models.CompactBundle, error) {
	var compact models.CompactBundle

	if rt, _ := bundle["resourceType"].(string); rt != "Bundle" {
		return compact, fmt.Errorf("%w: expected FHIR Bundle, got %q", ErrNotABundle, rt)
	}

	entries, _ := bundle["entry"].([]interface{})
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		resource, ok := entry["resource"].(map[string]interface{})
		if !ok {
			continue
		}

		switch resource["resourceType"] {
		case "MedicationStatement":
			compact.MedicationStatement = append(compact.MedicationStatement, compactMedication(resource))
		case "Observation":
			compact.Observation = append(compact.Observation, compactObservation(resource))
		case "Condition":
			compact.Condition = append(compact.Condition, compactCondition(resource))
		case "AllergyIntolerance":
			compact.AllergyIntolerance = append(compact.AllergyIntolerance, compactAllergy(resource))
		}
	}

	return compact, nil
}

func compactMedication(resource map[string]interface{}) models.CompactMedication {
	med := models.CompactMedication{
		Medication: nestedText(resource, "medicationCodeableConcept"),
	}

	if dosages, ok := resource["dosage"].([]interface{}); ok {
		for _, d := range dosages {
			if dm, ok := d.(map[string]interface{}); ok {
				if text, _ := dm["text"].(string); text != "" {
					med.Dosage = append(med.Dosage, text)
				}
			}
		}
	}

	return med
}

func compactObservation(resource map[string]interface{}) models.CompactObservation {
	obs := models.CompactObservation{
		Code: nestedText(resource, "code"),
	}

	if vq, ok := resource["valueQuantity"].(map[string]interface{}); ok {
		obs.Value = vq["value"]
		obs.Unit, _ = vq["unit"].(string)
	} else if vs, ok := resource["valueString"].(string); ok {
		obs.Value = vs
	}

	return obs
}

func compactCondition(resource map[string]interface{}) models.CompactCondition {
	return models.CompactCondition{
		Code:           nestedText(resource, "code"),
		ClinicalStatus: nestedText(resource, "clinicalStatus"),
	}
}

func compactAllergy(resource map[string]interface{}) models.CompactAllergy {
	criticality, _ := resource["criticality"].(string)
	return models.CompactAllergy{
		Substance:   nestedText(resource, "code"),
		Criticality: criticality,
	}
}

// nestedText reads resource[key].text, the common CodeableConcept shape.
func nestedText(resource map[string]interface{}, key string) string {
	if m, ok := resource[key].(map[string]interface{}); ok {
		if text, ok := m["text"].(string); ok {
			return text
		}
	}
	return ""
}
