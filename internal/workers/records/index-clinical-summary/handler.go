package indexclinicalsummary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
)

const (
	TaskType = "index-clinical-summary"
)

var (
	ErrIndexingFailed = errors.New("INDEXING_FAILED")
	ErrMissingNoteID  = errors.New("INDEXING_FAILED: noteId is required")
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
		if errors.Is(err, ErrIndexingFailed) {
			retries = 3
		}
		h.failJob(client, job, err, retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.NoteID == "" {
		return nil, ErrMissingNoteID
	}

	doc := buildDocument(input)

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal document: %v", ErrIndexingFailed, err)
	}

	res, err := h.client.Index(
		h.config.IndexName,
		bytes.NewReader(body),
		h.client.Index.WithDocumentID(input.NoteID),
		h.client.Index.WithContext(ctx),
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", ErrIndexingFailed, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrIndexingFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: index request returned %s", ErrIndexingFailed, res.Status())
	}

	h.logger.Info("summary indexed", map[string]interface{}{
		"noteId":    input.NoteID,
		"patientId": input.PatientID,
		"index":     h.config.IndexName,
	})

	return &Output{
		Indexed:   true,
		IndexName: h.config.IndexName,
		DocID:     input.NoteID,
	}, nil
}

func buildDocument(input *Input) *SummaryDocument {
	diagnoses := make([]string, 0, len(input.Extraction.Diagnoses))
	for _, d := range input.Extraction.Diagnoses {
		diagnoses = append(diagnoses, d.Text)
	}

	medications := make([]string, 0, len(input.Extraction.Medications))
	for _, m := range input.Extraction.Medications {
		medications = append(medications, m.Name)
	}

	alerts := make([]string, 0, len(input.Alerts))
	for _, a := range input.Alerts {
		alerts = append(alerts, a.Message)
	}

	return &SummaryDocument{
		NoteID:      input.NoteID,
		PatientID:   input.PatientID,
		Summary:     input.Summary,
		Diagnoses:   diagnoses,
		Medications: medications,
		Alerts:      alerts,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	}
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
