package sendalertnotification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	awsclients "mednote-workers/internal/common/aws"
	"mednote-workers/internal/common/validation"
	"mednote-workers/internal/models"
)

const (
	TaskType = "send-alert-notification"

	contactQuery = `SELECT name, email, phone FROM care_contacts WHERE patient_id = $1`
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config    *Config
	db        *sql.DB
	logger    Logger
	sesClient SESService
	snsClient SNSService
}

func NewHandler(config *Config, db *sql.DB, log Logger) (*Handler, error) {
	sesClient, err := awsclients.NewSESClient(context.Background(), config.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("create SES client: %w", err)
	}

	snsClient, err := awsclients.NewSNSClient(context.Background(), config.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("create SNS client: %w", err)
	}

	return &Handler{
		config:    config,
		db:        db,
		logger:    log.With(map[string]interface{}{"taskType": TaskType}),
		sesClient: sesClient,
		snsClient: snsClient,
	}, nil
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
		if errors.Is(err, ErrNotificationSendFailed) {
			retries = 3
		}
		h.failJob(client, job, err, retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	sentAt := time.Now().UTC().Format(time.RFC3339)
	notificationID := uuid.New().String()

	if len(input.Alerts) == 0 {
		return &Output{NotificationID: notificationID, Status: StatusSkipped, SentAt: sentAt}, nil
	}

	contact, err := h.getCareContact(ctx, input.PatientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A missing contact is not a pipeline failure, the alerts are
			// still carried on the process variables.
			h.logger.Warn("care contact not found", map[string]interface{}{
				"patientId": input.PatientID,
			})
			return &Output{NotificationID: notificationID, Status: StatusSkipped, SentAt: sentAt}, nil
		}
		return nil, fmt.Errorf("%w: contact lookup: %v", ErrNotificationSendFailed, err)
	}

	subject, body := buildAlertMessage(input)

	emailSent := false
	smsSent := false

	if h.config.EmailEnabled && contact.Email != "" {
		if !validation.ValidateEmail(contact.Email) {
			h.logger.Warn("contact email is malformed, skipping email", map[string]interface{}{
				"patientId": input.PatientID,
			})
		} else {
			if err := h.sendEmail(ctx, contact.Email, subject, body); err != nil {
				h.logger.Error("email send failed", map[string]interface{}{
					"error": err.Error(),
					"email": contact.Email,
				})
				return nil, fmt.Errorf("%w: email: %v", ErrNotificationSendFailed, err)
			}
			emailSent = true
		}
	}

	// SMS is reserved for high priority alerts
	if h.config.SMSEnabled && contact.Phone != "" && input.Priority == models.PriorityHigh {
		if !validation.ValidatePhone(contact.Phone) {
			h.logger.Warn("contact phone is malformed, skipping SMS", map[string]interface{}{
				"patientId": input.PatientID,
			})
		} else {
			if err := h.sendSMS(ctx, contact.Phone, body); err != nil {
				h.logger.Error("SMS send failed", map[string]interface{}{
					"error": err.Error(),
					"phone": contact.Phone,
				})
				return nil, fmt.Errorf("%w: sms: %v", ErrNotificationSendFailed, err)
			}
			smsSent = true
		}
	}

	status := StatusSkipped
	if emailSent || smsSent {
		status = StatusSent
	}

	h.logger.Info("alert notification processed", map[string]interface{}{
		"patientId":  input.PatientID,
		"alertCount": len(input.Alerts),
		"emailSent":  emailSent,
		"smsSent":    smsSent,
		"status":     status,
	})

	return &Output{
		NotificationID: notificationID,
		Status:         status,
		SentAt:         sentAt,
	}, nil
}

func (h *Handler) getCareContact(ctx context.Context, patientID string) (*models.CareContact, error) {
	contact := models.CareContact{PatientID: patientID}
	err := h.db.QueryRowContext(ctx, contactQuery, patientID).
		Scan(&contact.Name, &contact.Email, &contact.Phone)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func buildAlertMessage(input *Input) (string, string) {
	subject := fmt.Sprintf("Clinical alerts for patient %s", input.PatientID)
	if input.Priority == models.PriorityHigh {
		subject = "[URGENT] " + subject
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("The following alerts were raised while processing note %s:", input.NoteID))
	lines = append(lines, "")
	for _, alert := range input.Alerts {
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", strings.ToUpper(alert.Severity), alert.Type, alert.Message))
	}

	return subject, strings.Join(lines, "\n")
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
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
