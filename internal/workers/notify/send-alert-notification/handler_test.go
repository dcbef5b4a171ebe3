package sendalertnotification

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mednote-workers/internal/models"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t *testing.T
}

func NewTestLogger(t *testing.T) *TestLogger { return &TestLogger{t: t} }

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger { return l }

type mockSES struct {
	err      error
	sent     []*ses.SendEmailInput
	lastBody string
}

func (m *mockSES) SendEmail(_ context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, params)
	if params.Message != nil && params.Message.Body != nil && params.Message.Body.Text != nil {
		m.lastBody = *params.Message.Body.Text.Data
	}
	return &ses.SendEmailOutput{}, nil
}

type mockSNS struct {
	err  error
	sent []*sns.PublishInput
}

func (m *mockSNS) Publish(_ context.Context, params *sns.PublishInput) (*sns.PublishOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, params)
	return &sns.PublishOutput{}, nil
}

func createTestConfig() *Config {
	return &Config{
		EmailEnabled: true,
		SMSEnabled:   true,
		FromEmail:    "alerts@mednote.example",
		Timeout:      5 * time.Second,
	}
}

func createHandler(t *testing.T, sesClient SESService, snsClient SNSService) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Handler{
		config:    createTestConfig(),
		db:        db,
		logger:    NewTestLogger(t),
		sesClient: sesClient,
		snsClient: snsClient,
	}, mock
}

func contactRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"name", "email", "phone"}).
		AddRow("Dr. Rivera", "rivera@clinic.example", "+15555550100")
}

func testAlerts() []models.Alert {
	return []models.Alert{
		{Type: models.AlertTypeAllergy, Severity: models.SeverityCritical, Message: "High criticality allergy: Penicillin"},
		{Type: models.AlertTypeAbnormalValue, Severity: models.SeverityWarning, Message: "HbA1c 9.1 % outside reference range"},
	}
}

func TestHandler_Execute_SendsEmailAndSMSForHighPriority(t *testing.T) {
	sesClient := &mockSES{}
	snsClient := &mockSNS{}
	handler, mock := createHandler(t, sesClient, snsClient)

	mock.ExpectQuery("SELECT name, email, phone FROM care_contacts").
		WithArgs("patient-1").
		WillReturnRows(contactRows())

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		NoteID:    "note-1",
		Alerts:    testAlerts(),
		Priority:  models.PriorityHigh,
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSent, output.Status)
	assert.Len(t, sesClient.sent, 1)
	assert.Len(t, snsClient.sent, 1)
	assert.Contains(t, *sesClient.sent[0].Message.Subject.Data, "[URGENT]")
	assert.Contains(t, sesClient.lastBody, "Penicillin")
}

func TestHandler_Execute_NoSMSForNormalPriority(t *testing.T) {
	sesClient := &mockSES{}
	snsClient := &mockSNS{}
	handler, mock := createHandler(t, sesClient, snsClient)

	mock.ExpectQuery("SELECT name, email, phone FROM care_contacts").
		WithArgs("patient-1").
		WillReturnRows(contactRows())

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		NoteID:    "note-1",
		Alerts:    testAlerts(),
		Priority:  models.PriorityNormal,
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSent, output.Status)
	assert.Len(t, sesClient.sent, 1)
	assert.Empty(t, snsClient.sent)
}

func TestHandler_Execute_MissingContactSkips(t *testing.T) {
	sesClient := &mockSES{}
	snsClient := &mockSNS{}
	handler, mock := createHandler(t, sesClient, snsClient)

	mock.ExpectQuery("SELECT name, email, phone FROM care_contacts").
		WithArgs("patient-unknown").
		WillReturnError(sql.ErrNoRows)

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-unknown",
		NoteID:    "note-1",
		Alerts:    testAlerts(),
		Priority:  models.PriorityHigh,
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSkipped, output.Status)
	assert.Empty(t, sesClient.sent)
	assert.Empty(t, snsClient.sent)
}

func TestHandler_Execute_ContactLookupFailureIsRetryable(t *testing.T) {
	sesClient := &mockSES{}
	snsClient := &mockSNS{}
	handler, mock := createHandler(t, sesClient, snsClient)

	mock.ExpectQuery("SELECT name, email, phone FROM care_contacts").
		WithArgs("patient-1").
		WillReturnError(errors.New("connection refused"))

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		NoteID:    "note-1",
		Alerts:    testAlerts(),
		Priority:  models.PriorityHigh,
	})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotificationSendFailed))
	assert.Nil(t, output)
	assert.Empty(t, sesClient.sent)
	assert.Empty(t, snsClient.sent)
}

func TestHandler_Execute_NoAlertsSkips(t *testing.T) {
	sesClient := &mockSES{}
	snsClient := &mockSNS{}
	handler, _ := createHandler(t, sesClient, snsClient)

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		NoteID:    "note-1",
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSkipped, output.Status)
	assert.Empty(t, sesClient.sent)
}

func TestHandler_Execute_MalformedContactDataSkipsChannels(t *testing.T) {
	sesClient := &mockSES{}
	snsClient := &mockSNS{}
	handler, mock := createHandler(t, sesClient, snsClient)

	mock.ExpectQuery("SELECT name, email, phone FROM care_contacts").
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "phone"}).
			AddRow("Dr. Rivera", "not-an-email", "555"))

	output, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		NoteID:    "note-1",
		Alerts:    testAlerts(),
		Priority:  models.PriorityHigh,
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSkipped, output.Status)
	assert.Empty(t, sesClient.sent)
	assert.Empty(t, snsClient.sent)
}

func TestHandler_Execute_EmailFailureIsRetryable(t *testing.T) {
	sesClient := &mockSES{err: errors.New("ses throttled")}
	snsClient := &mockSNS{}
	handler, mock := createHandler(t, sesClient, snsClient)

	mock.ExpectQuery("SELECT name, email, phone FROM care_contacts").
		WithArgs("patient-1").
		WillReturnRows(contactRows())

	_, err := handler.Execute(context.Background(), &Input{
		PatientID: "patient-1",
		NoteID:    "note-1",
		Alerts:    testAlerts(),
	})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotificationSendFailed))
}
