package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mednote-workers/internal/common/config"
	chttp "mednote-workers/internal/common/http"
	"mednote-workers/internal/common/logger"
	"mednote-workers/internal/common/metrics"
)

// DocumentIntelligenceClient calls the Azure Document Intelligence REST API
// (formerly Form Recognizer). Analysis is asynchronous: the analyze call
// returns 202 with an Operation-Location header that is polled until a
// terminal status.
type DocumentIntelligenceClient struct {
	endpoint     string
	key          string
	modelID      string
	apiVersion   string
	pollInterval time.Duration
	httpClient   *chttp.Client
	logger       logger.Logger
}

func NewDocumentIntelligenceClient(cfg config.DocumentIntelligenceConfig, log logger.Logger) *DocumentIntelligenceClient {
	return &DocumentIntelligenceClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		key:          cfg.Key,
		modelID:      cfg.ModelID,
		apiVersion:   cfg.APIVersion,
		pollInterval: config.GetDuration(cfg.PollInterval),
		httpClient:   chttp.NewClient(60 * time.Second),
		logger:       log,
	}
}

type analyzeOperation struct {
	Status        string         `json:"status"`
	AnalyzeResult *analyzeResult `json:"analyzeResult,omitempty"`
	Error         *serviceError  `json:"error,omitempty"`
}

type analyzeResult struct {
	Content string        `json:"content"`
	Pages   []analyzePage `json:"pages"`
}

type analyzePage struct {
	PageNumber int           `json:"pageNumber"`
	Lines      []analyzeLine `json:"lines"`
}

type analyzeLine struct {
	Content string `json:"content"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExtractText submits a document for analysis and polls until the text is
// available. Page lines are joined with single spaces, matching the
// downstream analysis input format.
func (c *DocumentIntelligenceClient) ExtractText(ctx context.Context, document []byte, contentType string) (string, error) {
	start := time.Now()

	operationURL, err := c.submitAnalysis(ctx, document, contentType)
	if err != nil {
		metrics.AzureRequestErrors.WithLabelValues("document_intelligence", "analyze").Inc()
		return "", err
	}

	result, err := c.pollOperation(ctx, operationURL)
	if err != nil {
		metrics.AzureRequestErrors.WithLabelValues("document_intelligence", "analyze").Inc()
		return "", err
	}

	metrics.AzureRequestDuration.WithLabelValues("document_intelligence", "analyze").Observe(time.Since(start).Seconds())

	return joinPageLines(result), nil
}

func (c *DocumentIntelligenceClient) submitAnalysis(ctx context.Context, document []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s",
		c.endpoint, c.modelID, c.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("failed to build analyze request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("analyze returned status %d: %s", resp.StatusCode, string(body))
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("analyze response missing Operation-Location header")
	}

	c.logger.Debug("Document analysis submitted", map[string]interface{}{
		"operationUrl": operationURL,
		"modelId":      c.modelID,
	})

	return operationURL, nil
}

func (c *DocumentIntelligenceClient) pollOperation(ctx context.Context, operationURL string) (*analyzeResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
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

		var op analyzeOperation
		decodeErr := json.NewDecoder(resp.Body).Decode(&op)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode poll response: %w", decodeErr)
		}

		switch op.Status {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return nil, fmt.Errorf("analysis succeeded but result is empty")
			}
			return op.AnalyzeResult, nil
		case "failed":
			if op.Error != nil {
				return nil, fmt.Errorf("analysis failed: %s: %s", op.Error.Code, op.Error.Message)
			}
			return nil, fmt.Errorf("analysis failed without error detail")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// joinPageLines flattens page lines into a single space-separated string.
func joinPageLines(result *analyzeResult) string {
	var sb strings.Builder
	for _, page := range result.Pages {
		for _, line := range page.Lines {
			sb.WriteString(line.Content)
			sb.WriteString(" ")
		}
	}
	return strings.TrimSpace(sb.String())
}
