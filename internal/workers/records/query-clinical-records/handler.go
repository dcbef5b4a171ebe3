package queryclinicalrecords

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
)

const (
	TaskType = "query-clinical-records"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
	ErrIndexNotFound     = errors.New("INDEX_NOT_FOUND")
	ErrEmptyQuery        = errors.New("SEARCH_QUERY_FAILED: patientId or term is required")
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config *Config
	client *elasticsearch.Client
	logger Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log Logger) *Handler {
	return &Handler{
		config: config,
		client: client,
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
		if errors.Is(err, ErrSearchQueryFailed) && !errors.Is(err, ErrEmptyQuery) {
			retries = 3
		} else if errors.Is(err, ErrSearchTimeout) {
			retries = 2
		}
		h.failJob(client, job, err, retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.PatientID == "" && strings.TrimSpace(input.Term) == "" {
		return nil, ErrEmptyQuery
	}

	size := input.Size
	if size <= 0 || size > h.config.MaxResults {
		size = h.config.MaxResults
	}

	query := buildSearchQuery(input, size)
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal query: %v", ErrSearchQueryFailed, err)
	}

	res, err := h.client.Search(
		h.client.Search.WithContext(ctx),
		h.client.Search.WithIndex(h.config.IndexName),
		h.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, h.config.IndexName)
		}
		return nil, fmt.Errorf("%w: search returned %s", ErrSearchQueryFailed, res.Status())
	}

	output, err := parseSearchResponse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	h.logger.Info("record search completed", map[string]interface{}{
		"patientId": input.PatientID,
		"term":      input.Term,
		"totalHits": output.TotalHits,
	})

	return output, nil
}

// buildSearchQuery combines an exact patient filter with an optional
// free text clause over the summary and entity fields, newest first.
func buildSearchQuery(input *Input, size int) map[string]interface{} {
	var must []map[string]interface{}

	if input.PatientID != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{
				"patientId": input.PatientID,
			},
		})
	}

	if term := strings.TrimSpace(input.Term); term != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  term,
				"fields": []string{"summary", "diagnoses", "medications"},
			},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": must,
			},
		},
		"size": size,
		"sort": []map[string]interface{}{
			{"processedAt": map[string]interface{}{"order": "desc", "unmapped_type": "date"}},
		},
	}
}

type searchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64   `json:"_score"`
			Source RecordHit `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func parseSearchResponse(body io.Reader) (*Output, error) {
	var parsed searchResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %v", err)
	}

	records := make([]RecordHit, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		record := hit.Source
		record.Score = hit.Score
		records = append(records, record)
	}

	return &Output{
		Records:   records,
		TotalHits: parsed.Hits.Total.Value,
		Took:      parsed.Took,
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
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":  job.Key,
		"error":   err.Error(),
		"retries": retries,
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
