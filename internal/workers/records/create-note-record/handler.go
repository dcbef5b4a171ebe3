package createnoterecord

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	TaskType = "create-note-record"

	insertNoteQuery = `
		INSERT INTO clinical_notes (id, patient_id, text_hash, summary, alerts, entities, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	// Postgres error class for unique constraint violations
	uniqueViolationCode = "23505"
)

var (
	ErrRecordInsertFailed = errors.New("RECORD_INSERT_FAILED")
	ErrDuplicateNote      = errors.New("DUPLICATE_NOTE")
	ErrMissingPatientID   = errors.New("INVALID_NOTE_REQUEST")
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config *Config
	db     *sql.DB
	logger Logger
}

func NewHandler(config *Config, db *sql.DB, log Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
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
		if errors.Is(err, ErrRecordInsertFailed) {
			retries = 3
		}
		h.failJob(client, job, err, retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.PatientID == "" {
		return nil, fmt.Errorf("%w: patientId is required", ErrMissingPatientID)
	}

	alertsJSON, err := json.Marshal(input.Alerts)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal alerts: %v", ErrRecordInsertFailed, err)
	}

	entitiesJSON, err := json.Marshal(input.Extraction)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal entities: %v", ErrRecordInsertFailed, err)
	}

	noteID := uuid.NewString()
	createdAt := time.Now().UTC()

	_, err = h.db.ExecContext(ctx, insertNoteQuery,
		noteID, input.PatientID, input.TextHash, input.Summary, alertsJSON, entitiesJSON, createdAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return nil, fmt.Errorf("%w: note with hash %s already recorded for patient %s",
				ErrDuplicateNote, input.TextHash, input.PatientID)
		}
		return nil, fmt.Errorf("%w: %v", ErrRecordInsertFailed, err)
	}

	h.logger.Info("note record created", map[string]interface{}{
		"noteId":    noteID,
		"patientId": input.PatientID,
	})

	return &Output{
		NoteID:    noteID,
		CreatedAt: createdAt.Format(time.RFC3339),
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
	case errors.Is(err, ErrRecordInsertFailed):
		errorCode = "RECORD_INSERT_FAILED"
	case errors.Is(err, ErrDuplicateNote):
		errorCode = "DUPLICATE_NOTE"
	case errors.Is(err, ErrMissingPatientID):
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
