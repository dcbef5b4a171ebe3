// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline error codes, grouped by stage.
const (
	ErrCodeInvalidNoteRequest ErrorCode = "INVALID_NOTE_REQUEST"

	ErrCodeDocumentExtractionFailed ErrorCode = "DOCUMENT_EXTRACTION_FAILED"
	ErrCodeExtractionTimeout        ErrorCode = "EXTRACTION_TIMEOUT"
	ErrCodeUnsupportedDocument      ErrorCode = "UNSUPPORTED_DOCUMENT"

	ErrCodeHealthAnalysisFailed ErrorCode = "HEALTH_ANALYSIS_FAILED"
	ErrCodeAnalysisJobFailed    ErrorCode = "ANALYSIS_JOB_FAILED"
	ErrCodeAnalysisTimeout      ErrorCode = "ANALYSIS_TIMEOUT"
	ErrCodeFHIRBundleMissing    ErrorCode = "FHIR_BUNDLE_MISSING"
	ErrCodeInvalidFHIRBundle    ErrorCode = "INVALID_FHIR_BUNDLE"

	ErrCodeSummarizationFailed ErrorCode = "SUMMARIZATION_FAILED"
	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeRecordInsertFailed       ErrorCode = "RECORD_INSERT_FAILED"
	ErrCodeDuplicateNote            ErrorCode = "DUPLICATE_NOTE"

	ErrCodeIndexingFailed    ErrorCode = "INDEXING_FAILED"
	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound     ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidNoteRequestError creates a non-retryable request validation error.
func NewInvalidNoteRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidNoteRequest,
		Message:   "Note request must carry either note text or a document",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentExtractionFailedError creates a retryable extraction service error.
func NewDocumentExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentExtractionFailed,
		Message:   "Document Intelligence analysis failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionTimeoutError creates a retryable extraction timeout error.
func NewExtractionTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionTimeout,
		Message:   "Document Intelligence polling exceeded the worker timeout",
		Details:   "analysis operation did not reach a terminal status in time",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedDocumentError creates a non-retryable content type error.
func NewUnsupportedDocumentError(contentType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedDocument,
		Message:   "Unsupported document content type",
		Details:   fmt.Sprintf("contentType: %s", contentType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewHealthAnalysisFailedError creates a retryable Language service error.
func NewHealthAnalysisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHealthAnalysisFailed,
		Message:   "Healthcare text analysis request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisJobFailedError creates a non-retryable error for a job the
// service itself reported as failed or cancelled.
func NewAnalysisJobFailedError(status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisJobFailed,
		Message:   "Healthcare analysis job ended unsuccessfully",
		Details:   fmt.Sprintf("status: %s", status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisTimeoutError creates a retryable analysis polling timeout error.
func NewAnalysisTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisTimeout,
		Message:   "Healthcare analysis polling exceeded the worker timeout",
		Details:   "analysis job did not reach a terminal status in time",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFHIRBundleMissingError creates a non-retryable missing bundle error.
func NewFHIRBundleMissingError(documentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFHIRBundleMissing,
		Message:   "FHIR bundle not found in analysis response",
		Details:   fmt.Sprintf("documentId: %s", documentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidFHIRBundleError creates a non-retryable malformed bundle error.
func NewInvalidFHIRBundleError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFHIRBundle,
		Message:   "Expected FHIR Bundle",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSummarizationFailedError creates a retryable OpenAI error.
func NewSummarizationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSummarizationFailed,
		Message:   "Clinical summarization API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "Clinical summarization timeout",
		Details:   "chat completion call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordInsertFailedError creates a retryable record insert error.
func NewRecordInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordInsertFailed,
		Message:   "Clinical note insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateNoteError creates a non-retryable duplicate note error.
func NewDuplicateNoteError(noteHash string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateNote,
		Message:   "Clinical note already processed for this patient",
		Details:   fmt.Sprintf("textHash: %s", noteHash),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexingFailedError creates a retryable indexing error.
func NewIndexingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexingFailed,
		Message:   "Elasticsearch indexing failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Elasticsearch query timeout",
		Details:   "search exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotFound,
		Message:   "Elasticsearch index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Alert notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. The
// codes are identical on both sides; the map exists so a future rename on
// the BPMN side stays a one-line change.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidNoteRequest:       "INVALID_NOTE_REQUEST",
	ErrCodeDocumentExtractionFailed: "DOCUMENT_EXTRACTION_FAILED",
	ErrCodeExtractionTimeout:        "EXTRACTION_TIMEOUT",
	ErrCodeUnsupportedDocument:      "UNSUPPORTED_DOCUMENT",
	ErrCodeHealthAnalysisFailed:     "HEALTH_ANALYSIS_FAILED",
	ErrCodeAnalysisJobFailed:        "ANALYSIS_JOB_FAILED",
	ErrCodeAnalysisTimeout:          "ANALYSIS_TIMEOUT",
	ErrCodeFHIRBundleMissing:        "FHIR_BUNDLE_MISSING",
	ErrCodeInvalidFHIRBundle:        "INVALID_FHIR_BUNDLE",
	ErrCodeSummarizationFailed:      "SUMMARIZATION_FAILED",
	ErrCodeLLMTimeout:               "LLM_TIMEOUT",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeRecordInsertFailed:       "RECORD_INSERT_FAILED",
	ErrCodeDuplicateNote:            "DUPLICATE_NOTE",
	ErrCodeIndexingFailed:           "INDEXING_FAILED",
	ErrCodeSearchQueryFailed:        "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:            "SEARCH_TIMEOUT",
	ErrCodeIndexNotFound:            "INDEX_NOT_FOUND",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDocumentExtractionFailed,
		ErrCodeHealthAnalysisFailed,
		ErrCodeSummarizationFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeRecordInsertFailed,
		ErrCodeIndexingFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed:
		return 3 // Retryable technical errors

	case ErrCodeExtractionTimeout,
		ErrCodeAnalysisTimeout,
		ErrCodeSearchTimeout:
		return 2 // Partial retry for polling/search timeouts

	case ErrCodeLLMTimeout:
		return 1 // As per BPMN boundary event

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for the engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "DOCUMENT"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "ANALYSIS") || strings.Contains(codeStr, "FHIR"):
		return "ANALYSIS"
	case strings.Contains(codeStr, "SUMMARIZATION") || strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "RECORD") || strings.Contains(codeStr, "DUPLICATE"):
		return "DATABASE"
	case strings.Contains(codeStr, "INDEX") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
