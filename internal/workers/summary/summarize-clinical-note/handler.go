package summarizeclinicalnote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"mednote-workers/internal/common/azure"
)

const (
	TaskType = "summarize-clinical-note"

	systemPrompt = "You are a helpful clinical AI assistant."
)

var (
	ErrSummarizationFailed = errors.New("SUMMARIZATION_FAILED")
	ErrLLMTimeout          = errors.New("LLM_TIMEOUT")
)

// ChatCompleter abstracts the OpenAI client for testing.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, messages []azure.ChatMessage) (string, error)
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config    *Config
	completer ChatCompleter
	logger    Logger
}

func NewHandler(config *Config, completer ChatCompleter, log Logger) *Handler {
	return &Handler{
		config:    config,
		completer: completer,
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
		if errors.Is(err, ErrSummarizationFailed) {
			retries = 3
		} else if errors.Is(err, ErrLLMTimeout) {
			retries = 1
		}
		h.failJob(client, job, err, retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	prompt, err := buildPrompt(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	messages := []azure.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}

	summary, err := h.completer.CreateChatCompletion(ctx, messages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrSummarizationFailed)
	}

	h.logger.Info("clinical summary generated", map[string]interface{}{
		"patientId":    input.PatientID,
		"summaryChars": len(summary),
		"fallbackMode": input.FallbackMode,
	})

	return &Output{Summary: summary}, nil
}

// buildPrompt embeds either the compact bundle JSON or, in fallback mode,
// the raw note text.
func buildPrompt(input *Input) (string, error) {
	var parts []string

	if input.FallbackMode {
		parts = append(parts, "You are a medical summarization assistant. Given the following clinical note text:")
		parts = append(parts, "")
		parts = append(parts, input.NoteText)
	} else {
		bundleJSON, err := json.MarshalIndent(input.CompactBundle, "", "  ")
		if err != nil {
			return "", err
		}
		parts = append(parts, "You are a medical summarization assistant. Given the following FHIR bundle in JSON format:")
		parts = append(parts, "")
		parts = append(parts, string(bundleJSON))
	}

	parts = append(parts, "")
	parts = append(parts, "1. Provide a short plain text clinical summary.")
	parts = append(parts, "2. Highlight 1-2 critical alerts (e.g., allergies, drug interactions, abnormal values) if present.")

	return strings.Join(parts, "\n"), nil
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
	if errors.Is(err, ErrSummarizationFailed) {
		errorCode = "SUMMARIZATION_FAILED"
	} else if errors.Is(err, ErrLLMTimeout) {
		errorCode = "LLM_TIMEOUT"
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
