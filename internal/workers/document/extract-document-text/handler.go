package extractdocumenttext

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"mednote-workers/internal/common/metrics"
)

const (
	TaskType = "extract-document-text"

	cacheKeyPrefix = "extract:text:"
)

var (
	ErrExtractionFailed  = errors.New("DOCUMENT_EXTRACTION_FAILED")
	ErrExtractionTimeout = errors.New("EXTRACTION_TIMEOUT")
	ErrEmptyDocument     = errors.New("INVALID_NOTE_REQUEST")
)

// TextExtractor abstracts the Document Intelligence client for testing.
type TextExtractor interface {
	ExtractText(ctx context.Context, document []byte, contentType string) (string, error)
}

// Cache abstracts the Redis client for testing.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config    *Config
	extractor TextExtractor
	cache     Cache
	logger    Logger
}

func NewHandler(config *Config, extractor TextExtractor, cache Cache, log Logger) *Handler {
	return &Handler{
		config:    config,
		extractor: extractor,
		cache:     cache,
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
		if errors.Is(err, ErrExtractionFailed) {
			retries = 3
		} else if errors.Is(err, ErrExtractionTimeout) {
			retries = 2
		}
		h.failJob(client, job, err, retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	// Text-only requests pass straight through; the hash still feeds dedup
	if !input.HasDocument || input.Document == nil {
		if input.NoteText == "" {
			return nil, fmt.Errorf("%w: no document and no note text", ErrEmptyDocument)
		}
		return &Output{
			NoteText:  input.NoteText,
			TextHash:  hashBytes([]byte(input.NoteText)),
			CharCount: len(input.NoteText),
		}, nil
	}

	document, err := base64.StdEncoding.DecodeString(input.Document.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 document content", ErrEmptyDocument)
	}
	if len(document) == 0 {
		return nil, fmt.Errorf("%w: document is empty", ErrEmptyDocument)
	}

	docHash := hashBytes(document)

	if h.config.CacheEnabled && h.cache != nil {
		if text, err := h.cache.Get(ctx, cacheKeyPrefix+docHash); err == nil && text != "" {
			metrics.ExtractionCacheHits.WithLabelValues("hit").Inc()
			h.logger.Info("extraction cache hit", map[string]interface{}{
				"docHash": docHash,
			})
			return &Output{
				NoteText:  text,
				TextHash:  docHash,
				Cached:    true,
				CharCount: len(text),
			}, nil
		}
		metrics.ExtractionCacheHits.WithLabelValues("miss").Inc()
	}

	contentType := input.Document.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	text, err := h.extractor.ExtractText(ctx, document, contentType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", ErrExtractionTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if h.config.CacheEnabled && h.cache != nil {
		if err := h.cache.Set(ctx, cacheKeyPrefix+docHash, text, h.config.CacheTTL); err != nil {
			// Cache write failures are not fatal
			h.logger.Error("failed to cache extracted text", map[string]interface{}{
				"docHash": docHash,
				"error":   err.Error(),
			})
		}
	}

	h.logger.Info("document text extracted", map[string]interface{}{
		"docHash":   docHash,
		"charCount": len(text),
	})

	return &Output{
		NoteText:  text,
		TextHash:  docHash,
		CharCount: len(text),
	}, nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
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
	case errors.Is(err, ErrExtractionFailed):
		errorCode = "DOCUMENT_EXTRACTION_FAILED"
	case errors.Is(err, ErrExtractionTimeout):
		errorCode = "EXTRACTION_TIMEOUT"
	case errors.Is(err, ErrEmptyDocument):
		errorCode = "INVALID_NOTE_REQUEST"
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
