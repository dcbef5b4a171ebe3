package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mednote-workers/internal/common/config"
	chttp "mednote-workers/internal/common/http"
	"mednote-workers/internal/common/logger"
	"mednote-workers/internal/common/metrics"
)

// Terminal statuses of an analyze-text job.
const (
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// LanguageClient calls the Azure Language analyze-text jobs API with the
// Healthcare task kind. Jobs are asynchronous: submission returns 202 with
// an operation-location header that is polled until a terminal status.
type LanguageClient struct {
	endpoint     string
	key          string
	apiVersion   string
	fhirVersion  string
	pollInterval time.Duration
	httpClient   *chttp.Client
	logger       logger.Logger
}

func NewLanguageClient(cfg config.LanguageConfig, log logger.Logger) *LanguageClient {
	return &LanguageClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		key:          cfg.Key,
		apiVersion:   cfg.APIVersion,
		fhirVersion:  cfg.FHIRVersion,
		pollInterval: config.GetDuration(cfg.PollInterval),
		httpClient:   chttp.NewClient(60 * time.Second),
		logger:       log,
	}
}

// AnalysisDocument is a single document submitted for healthcare analysis.
type AnalysisDocument struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

type analyzeJobRequest struct {
	AnalysisInput analysisInput   `json:"analysisInput"`
	Tasks         []analysisTask  `json:"tasks"`
}

type analysisInput struct {
	Documents []AnalysisDocument `json:"documents"`
}

type analysisTask struct {
	TaskID     string         `json:"taskId"`
	Kind       string         `json:"kind"`
	Parameters taskParameters `json:"parameters"`
}

type taskParameters struct {
	FHIRVersion string `json:"fhirVersion"`
}

// AnalyzeJobResult is the terminal response of an analyze-text job.
type AnalyzeJobResult struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Tasks  struct {
		Items []TaskItem `json:"items"`
	} `json:"tasks"`
}

type TaskItem struct {
	Kind    string            `json:"kind"`
	Status  string            `json:"status"`
	Results HealthcareResults `json:"results"`
}

type HealthcareResults struct {
	Documents []HealthcareDocument `json:"documents"`
	Errors    []DocumentError      `json:"errors"`
}

type DocumentError struct {
	ID    string       `json:"id"`
	Error serviceError `json:"error"`
}

// HealthcareDocument carries the per-document analysis output including the
// optional FHIR bundle requested via fhirVersion.
type HealthcareDocument struct {
	ID         string                 `json:"id"`
	Entities   []HealthcareEntity     `json:"entities"`
	Relations  []HealthcareRelation   `json:"relations"`
	FHIRBundle map[string]interface{} `json:"fhirBundle,omitempty"`
}

type HealthcareEntity struct {
	Text            string           `json:"text"`
	Category        string           `json:"category"`
	Offset          int              `json:"offset"`
	Length          int              `json:"length"`
	ConfidenceScore float64          `json:"confidenceScore"`
	Name            string           `json:"name,omitempty"` // normalized text
	Assertion       *EntityAssertion `json:"assertion,omitempty"`
}

type EntityAssertion struct {
	Certainty      string `json:"certainty,omitempty"`
	Conditionality string `json:"conditionality,omitempty"`
	Association    string `json:"association,omitempty"`
}

type HealthcareRelation struct {
	RelationType string           `json:"relationType"`
	Entities     []RelationEntity `json:"entities"`
}

// RelationEntity references an entity of the same document by JSON pointer,
// e.g. "#/results/documents/0/entities/3".
type RelationEntity struct {
	Ref  string `json:"ref"`
	Role string `json:"role"`
}

// AnalyzeHealthcare submits documents as a Healthcare analysis job and polls
// until a terminal status. The returned result may still carry status
// "failed" or "cancelled"; callers decide how to treat those.
func (c *LanguageClient) AnalyzeHealthcare(ctx context.Context, documents []AnalysisDocument) (*AnalyzeJobResult, error) {
	start := time.Now()

	jobURL, err := c.submitJob(ctx, documents)
	if err != nil {
		metrics.AzureRequestErrors.WithLabelValues("language", "analyze_healthcare").Inc()
		return nil, err
	}

	result, err := c.pollJob(ctx, jobURL)
	if err != nil {
		metrics.AzureRequestErrors.WithLabelValues("language", "analyze_healthcare").Inc()
		return nil, err
	}

	metrics.AzureRequestDuration.WithLabelValues("language", "analyze_healthcare").Observe(time.Since(start).Seconds())

	return result, nil
}

func (c *LanguageClient) submitJob(ctx context.Context, documents []AnalysisDocument) (string, error) {
	url := fmt.Sprintf("%s/language/analyze-text/jobs?api-version=%s", c.endpoint, c.apiVersion)

	payload := analyzeJobRequest{
		AnalysisInput: analysisInput{Documents: documents},
		Tasks: []analysisTask{
			{
				TaskID:     "analyze1",
				Kind:       "Healthcare",
				Parameters: taskParameters{FHIRVersion: c.fhirVersion},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build job request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("job submission failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("job submission returned status %d: %s", resp.StatusCode, string(respBody))
	}

	jobURL := resp.Header.Get("operation-location")
	if jobURL == "" {
		return "", fmt.Errorf("job submission response missing operation-location header")
	}

	c.logger.Debug("Healthcare analysis job submitted", map[string]interface{}{
		"jobUrl":    jobURL,
		"documents": len(documents),
	})

	return jobURL, nil
}

func (c *LanguageClient) pollJob(ctx context.Context, jobURL string) (*AnalyzeJobResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, jobURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build poll request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("poll request failed: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("poll returned status %d: %s", resp.StatusCode, string(body))
		}

		var result AnalyzeJobResult
		decodeErr := json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode poll response: %w", decodeErr)
		}

		switch result.Status {
		case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
			return &result, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ResolveEntity resolves a relation entity reference against the document's
// entity list. Refs end with the entity index, e.g. ".../entities/3".
func ResolveEntity(doc *HealthcareDocument, ref string) *HealthcareEntity {
	idx := strings.LastIndex(ref, "/")
	if idx < 0 || idx == len(ref)-1 {
		return nil
	}

	i, err := strconv.Atoi(ref[idx+1:])
	if err != nil || i < 0 || i >= len(doc.Entities) {
		return nil
	}

	return &doc.Entities[i]
}
