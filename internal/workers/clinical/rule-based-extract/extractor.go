package rulebasedextract

import (
	"regexp"
	"strings"

	"mednote-workers/internal/models"
)

const (
	medDose  = `(?P<dose>\d+(?:\.\d+)?\s*(?:mg|mcg|g|iu|units|ml))`
	medFreq  = `(?P<freq>once daily|twice daily|daily|bid|tid|qid|q\d+h|q\d{1,2}h)`
	medRoute = `(?P<route>po|iv|im|sc|sl|topical|inhaled|pr)`

	labUnit = `%|mg/dL|mmol/L|g/L|g/dL|U/L|IU/L|ng/mL|pg/mL|mEq/L|mmHg|bpm|°C|10\^9/L|x10\^9/L|k/µL`
)

// Seed words for standalone diagnosis mentions.
var diagWords = []string{
	"diabetes", "hypertension", "pneumonia", "asthma", "copd", "migraine", "anemia", "covid-19",
}

// Phrases that introduce symptom listings.
var symptomTriggers = []string{
	"complains of", "reports", "presents with", "symptoms include", "c/o", "denies",
}

var diagnosisHeaders = []string{"diagnosis", "diagnoses", "assessment", "impression"}

var (
	// The dose anchors the match; name alone would swallow whole prose lines.
	medLineRe = regexp.MustCompile(
		`(?im)^(?P<name>[A-Z][A-Za-z\- ]{2,}?)\s+` + medDose + `(?:\s+` + medRoute + `)?(?:\s+` + medFreq + `)?`)

	labRe = regexp.MustCompile(
		`(?i)(?P<name>[A-Za-z][A-Za-z0-9\-/ ]{2,})\s*[:=]\s*(?P<value>[-+]?\d+(?:\.\d+)?)\s*(?P<unit>` + labUnit + `)?`)

	diagSplitRe    = regexp.MustCompile(`[,;\n]`)
	symptomSplitRe = regexp.MustCompile(`,|and|/`)
)

// extractRuleBased mines medications, diagnoses, symptoms and labs from the
// raw note text with regex rules. It is the fallback path when the Language
// service is unavailable, so it must never call out anywhere.
func extractRuleBased(text string) models.ExtractionResult {
	return models.ExtractionResult{
		Source:      models.SourceRuleBased,
		Medications: extractMedications(text),
		Diagnoses:   extractDiagnoses(text),
		Symptoms:    extractSymptoms(text),
		Labs:        extractLabs(text),
	}
}

func extractMedications(text string) []models.Medication {
	byName := make(map[string]*models.Medication)
	var order []string

	for _, m := range medLineRe.FindAllStringSubmatch(text, -1) {
		groups := namedGroups(medLineRe, m)
		name := strings.TrimSpace(groups["name"])
		if name == "" {
			continue
		}

		entry, ok := byName[name]
		if !ok {
			entry = &models.Medication{Name: name, Source: models.SourceRuleBased}
			byName[name] = entry
			order = append(order, name)
		}
		if entry.Dosage == "" {
			entry.Dosage = groups["dose"]
		}
		if entry.Frequency == "" {
			entry.Frequency = groups["freq"]
		}
		if entry.Route == "" {
			entry.Route = groups["route"]
		}
	}

	meds := make([]models.Medication, 0, len(order))
	for _, name := range order {
		meds = append(meds, *byName[name])
	}
	return meds
}

func extractDiagnoses(text string) []models.Diagnosis {
	seen := make(map[string]bool)
	var out []models.Diagnosis

	add := func(s string) {
		w := strings.Trim(strings.TrimSpace(s), ".- ")
		if w == "" {
			return
		}
		key := strings.ToLower(w)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, models.Diagnosis{Text: w, Source: models.SourceRuleBased})
	}

	// Section headers: "Diagnosis: x, y; z"
	for _, header := range diagnosisHeaders {
		re := regexp.MustCompile(`(?i)` + header + `\s*:\s*(.+)`)
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			for _, piece := range diagSplitRe.Split(m[1], -1) {
				add(piece)
			}
		}
	}

	// Standalone seed words
	for _, w := range diagWords {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if re.MatchString(text) {
			add(w)
		}
	}

	return out
}

func extractSymptoms(text string) []models.Symptom {
	var out []models.Symptom

	for _, trig := range symptomTriggers {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(trig) + `\s+([^\.;\n]+)`)
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			for _, s := range symptomSplitRe.Split(m[1], -1) {
				cand := strings.Trim(strings.TrimSpace(s), ".- ")
				if cand != "" {
					out = append(out, models.Symptom{Text: cand, Source: models.SourceRuleBased})
				}
			}
		}
	}

	return out
}

func extractLabs(text string) []models.Lab {
	var out []models.Lab

	for _, m := range labRe.FindAllStringSubmatch(text, -1) {
		groups := namedGroups(labRe, m)
		out = append(out, models.Lab{
			Name:   strings.TrimSpace(groups["name"]),
			Value:  groups["value"],
			Unit:   groups["unit"],
			Source: models.SourceRuleBased,
		})
	}

	return out
}

func namedGroups(re *regexp.Regexp, match []string) map[string]string {
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			groups[name] = match[i]
		}
	}
	return groups
}
