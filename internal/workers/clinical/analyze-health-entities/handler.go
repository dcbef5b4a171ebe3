package analyzehealthentities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"mednote-workers/internal/common/azure"
	"mednote-workers/internal/models"
)

const (
	TaskType = "analyze-health-entities"
)

var (
	ErrAnalysisFailed    = errors.New("HEALTH_ANALYSIS_FAILED")
	ErrAnalysisTimeout   = errors.New("ANALYSIS_TIMEOUT")
	ErrAnalysisJobFailed = errors.New("ANALYSIS_JOB_FAILED")
	ErrFHIRBundleMissing = errors.New("FHIR_BUNDLE_MISSING")
)

// HealthAnalyzer abstracts the Language client for testing.
type HealthAnalyzer interface {
	AnalyzeHealthcare(ctx context.Context, documents []azure.AnalysisDocument) (*azure.AnalyzeJobResult, error)
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config   *Config
	analyzer HealthAnalyzer
	logger   Logger
}

func NewHandler(config *Config, analyzer HealthAnalyzer, log Logger) *Handler {
	return &Handler{
		config:   config,
		analyzer: analyzer,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, fmt.Errorf("parse input: %w", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		retries := int32(0)
		if errors.Is(err, ErrAnalysisFailed) {
			retries = 3
		} else if errors.Is(err, ErrAnalysisTimeout) {
			retries = 2
		}
		h.failJob(client, job, err, retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.NoteText) == "" {
		return nil, fmt.Errorf("%w: empty note text", ErrAnalysisJobFailed)
	}

	chunks := chunkText(input.NoteText, h.config.MaxChunkChars)

	collector := newEntityCollector()
	var fhirBundle map[string]interface{}

	for i := 0; i < len(chunks); i += h.config.BatchSize {
		end := i + h.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		var documents []azure.AnalysisDocument
		for j, chunk := range chunks[i:end] {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			documents = append(documents, azure.AnalysisDocument{
				ID:       strconv.Itoa(i + j),
				Language: h.config.Language,
				Text:     chunk,
			})
		}
		if len(documents) == 0 {
			continue
		}

		result, err := h.analyzer.AnalyzeHealthcare(ctx, documents)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("%w: %v", ErrAnalysisTimeout, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
		}

		if result.Status != azure.JobStatusSucceeded {
			return nil, fmt.Errorf("%w: job status %s", ErrAnalysisJobFailed, result.Status)
		}

		for _, task := range result.Tasks.Items {
			for d := range task.Results.Documents {
				doc := &task.Results.Documents[d]
				collector.collect(doc)
				if fhirBundle == nil && doc.FHIRBundle != nil {
					fhirBundle = doc.FHIRBundle
				}
			}
		}
	}

	if fhirBundle == nil {
		return nil, fmt.Errorf("%w: no fhirBundle in analysis response", ErrFHIRBundleMissing)
	}

	extraction := collector.result()

	h.logger.Info("healthcare analysis completed", map[string]interface{}{
		"patientId":   input.PatientID,
		"chunks":      len(chunks),
		"diagnoses":   len(extraction.Diagnoses),
		"medications": len(extraction.Medications),
		"symptoms":    len(extraction.Symptoms),
		"labs":        len(extraction.Labs),
	})

	return &Output{
		Extraction: extraction,
		FHIRBundle: fhirBundle,
		ChunkCount: len(chunks),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error, retries int32) {
	errorCode := "UNKNOWN_ERROR"
	switch {
	case errors.Is(err, ErrAnalysisFailed):
		errorCode = "HEALTH_ANALYSIS_FAILED"
	case errors.Is(err, ErrAnalysisTimeout):
		errorCode = "ANALYSIS_TIMEOUT"
	case errors.Is(err, ErrAnalysisJobFailed):
		errorCode = "ANALYSIS_JOB_FAILED"
	case errors.Is(err, ErrFHIRBundleMissing):
		errorCode = "FHIR_BUNDLE_MISSING"
	}

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":    job.Key,
		"error":     err.Error(),
		"errorCode": errorCode,
		"retries":   retries,
	})

	_, _ = client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(err.Error()).
		Send(context.Background())
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// ==========================
// Entity collection
// ==========================

type entityKey struct {
	text     string
	category string
	offset   int
}

// entityCollector dedupes entities across chunks and enriches medications
// and labs from relation roles.
type entityCollector struct {
	diagnoses   map[entityKey]models.Diagnosis
	symptoms    map[entityKey]models.Symptom
	medications map[entityKey]*models.Medication
	labs        map[entityKey]*models.Lab
	order       []entityKey
}

func newEntityCollector() *entityCollector {
	return &entityCollector{
		diagnoses:   make(map[entityKey]models.Diagnosis),
		symptoms:    make(map[entityKey]models.Symptom),
		medications: make(map[entityKey]*models.Medication),
		labs:        make(map[entityKey]*models.Lab),
	}
}

func keyOf(e *azure.HealthcareEntity) entityKey {
	return entityKey{text: e.Text, category: normalizeCategory(e.Category), offset: e.Offset}
}

// normalizeCategory folds the service's CamelCase category names and the
// SDK's UPPER_SNAKE variants into one comparable form.
func normalizeCategory(category string) string {
	return strings.ToUpper(strings.NewReplacer("_", "", " ", "").Replace(category))
}

func convertAssertion(a *azure.EntityAssertion) *models.Assertion {
	if a == nil {
		return nil
	}
	return &models.Assertion{
		Certainty:      a.Certainty,
		Conditionality: a.Conditionality,
		Association:    a.Association,
	}
}

func (c *entityCollector) collect(doc *azure.HealthcareDocument) {
	// First pass: standalone entities of interest
	for i := range doc.Entities {
		ent := &doc.Entities[i]
		cat := normalizeCategory(ent.Category)
		ek := keyOf(ent)

		switch cat {
		case "DIAGNOSIS":
			c.diagnoses[ek] = models.Diagnosis{
				Text:       ent.Text,
				Normalized: ent.Name,
				Confidence: ent.ConfidenceScore,
				Assertion:  convertAssertion(ent.Assertion),
				Source:     models.SourceAzure,
			}
		case "SYMPTOMORSIGN":
			c.symptoms[ek] = models.Symptom{
				Text:       ent.Text,
				Normalized: ent.Name,
				Confidence: ent.ConfidenceScore,
				Assertion:  convertAssertion(ent.Assertion),
				Source:     models.SourceAzure,
			}
		case "MEDICATIONNAME":
			if _, ok := c.medications[ek]; !ok {
				c.medications[ek] = &models.Medication{
					Name:       ent.Text,
					Normalized: ent.Name,
					Confidence: ent.ConfidenceScore,
					Assertion:  convertAssertion(ent.Assertion),
					Source:     models.SourceAzure,
				}
				c.order = append(c.order, ek)
			}
		case "EXAMINATIONNAME":
			if _, ok := c.labs[ek]; !ok {
				c.labs[ek] = &models.Lab{
					Name:       ent.Text,
					Confidence: ent.ConfidenceScore,
					Source:     models.SourceAzure,
				}
			}
		}
	}

	// Second pass: relations enrich medications and labs
	for _, rel := range doc.Relations {
		roles := make(map[string]*azure.HealthcareEntity, len(rel.Entities))
		for _, re := range rel.Entities {
			if ent := azure.ResolveEntity(doc, re.Ref); ent != nil {
				roles[normalizeRole(re.Role)] = ent
			}
		}

		c.enrichMedication(roles)
		c.enrichLab(roles)
	}
}

func normalizeRole(role string) string {
	return strings.ToUpper(strings.NewReplacer("_", "", " ", "").Replace(role))
}

func (c *entityCollector) enrichMedication(roles map[string]*azure.HealthcareEntity) {
	var medEnt *azure.HealthcareEntity
	for role, ent := range roles {
		if strings.Contains(role, "MEDICATION") && !strings.Contains(role, "FORM") {
			medEnt = ent
			break
		}
	}
	if medEnt == nil {
		return
	}

	mk := keyOf(medEnt)
	med, ok := c.medications[mk]
	if !ok {
		med = &models.Medication{
			Name:       medEnt.Text,
			Normalized: medEnt.Name,
			Source:     models.SourceAzure,
		}
		c.medications[mk] = med
		c.order = append(c.order, mk)
	}

	if ent, ok := roles["DOSAGE"]; ok {
		med.Dosage = ent.Text
	}
	if ent, ok := roles["FREQUENCY"]; ok {
		med.Frequency = ent.Text
	}
	if ent, ok := roles["ROUTE"]; ok {
		med.Route = ent.Text
	} else if ent, ok := roles["ROUTEOFADMINISTRATION"]; ok {
		med.Route = ent.Text
	}
	if ent, ok := roles["FORM"]; ok {
		med.Form = ent.Text
	} else if ent, ok := roles["MEDICATIONFORM"]; ok {
		med.Form = ent.Text
	}
}

func (c *entityCollector) enrichLab(roles map[string]*azure.HealthcareEntity) {
	var examEnt *azure.HealthcareEntity
	for role, ent := range roles {
		if strings.Contains(role, "EXAMINATION") {
			examEnt = ent
			break
		}
	}
	if examEnt == nil {
		return
	}

	lk := keyOf(examEnt)
	lab, ok := c.labs[lk]
	if !ok {
		lab = &models.Lab{
			Name:   examEnt.Text,
			Source: models.SourceAzure,
		}
		c.labs[lk] = lab
	}

	if ent, ok := roles["MEASUREMENTVALUE"]; ok {
		lab.Value = ent.Text
	}
	if ent, ok := roles["MEASUREMENTUNIT"]; ok {
		lab.Unit = ent.Text
	}
	if ent, ok := roles["RELATIONALOPERATOR"]; ok {
		lab.Operator = ent.Text
	}
}

func (c *entityCollector) result() models.ExtractionResult {
	out := models.ExtractionResult{
		Source:      models.SourceAzure,
		Diagnoses:   []models.Diagnosis{},
		Medications: []models.Medication{},
		Symptoms:    []models.Symptom{},
		Labs:        []models.Lab{},
	}
	for _, d := range c.diagnoses {
		out.Diagnoses = append(out.Diagnoses, d)
	}
	for _, s := range c.symptoms {
		out.Symptoms = append(out.Symptoms, s)
	}
	for _, k := range c.order {
		if m, ok := c.medications[k]; ok {
			out.Medications = append(out.Medications, *m)
		}
	}
	for _, l := range c.labs {
		out.Labs = append(out.Labs, *l)
	}
	return out
}
