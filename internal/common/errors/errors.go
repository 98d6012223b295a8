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

const (
	// Job input
	ErrCodeInputInvalid ErrorCode = "SUPERVISOR_INPUT_INVALID"

	// Specialist tier
	ErrCodeSpecialistTimeout   ErrorCode = "SPECIALIST_TIMEOUT"
	ErrCodeSpecialistFailed    ErrorCode = "SPECIALIST_FAILED"
	ErrCodeSpecialistMalformed ErrorCode = "SPECIALIST_RESPONSE_MALFORMED"
	ErrCodeFallbackFailed      ErrorCode = "FALLBACK_AGENT_FAILED"

	// Classification / synthesis
	ErrCodeEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	ErrCodeLLMTimeout           ErrorCode = "LLM_TIMEOUT"
	ErrCodeSynthesisFailed      ErrorCode = "SYNTHESIS_FAILED"

	// Data stores behind the agent tools
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed          ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"

	// Engine / generic
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
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

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInputInvalidError is raised for malformed job variables. Not retryable.
func NewInputInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputInvalid,
		Message:   "Supervisor input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSpecialistTimeoutError records a specialist tier that exceeded its budget.
func NewSpecialistTimeoutError(specialistID string, budget time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeSpecialistTimeout,
		Message:   "Specialist call timed out",
		Details:   fmt.Sprintf("specialist: %s, budget: %s", specialistID, budget),
		Retryable: false,
		Metadata:  map[string]interface{}{"specialistId": specialistID},
		Timestamp: time.Now().UTC(),
	}
}

// NewSpecialistFailedError wraps a primary specialist failure.
func NewSpecialistFailedError(specialistID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSpecialistFailed,
		Message:   "Specialist endpoint failed",
		Details:   fmt.Sprintf("specialist: %s, error: %s", specialistID, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"specialistId": specialistID},
		Timestamp: time.Now().UTC(),
	}
}

// NewSpecialistMalformedError is used when an envelope fails schema validation.
func NewSpecialistMalformedError(specialistID, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSpecialistMalformed,
		Message:   "Specialist response did not match the expected envelope",
		Details:   fmt.Sprintf("specialist: %s, %s", specialistID, details),
		Retryable: false,
		Metadata:  map[string]interface{}{"specialistId": specialistID},
		Timestamp: time.Now().UTC(),
	}
}

// NewFallbackFailedError records a failure of the generic agent tier.
func NewFallbackFailedError(specialistID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFallbackFailed,
		Message:   "Fallback agent failed",
		Details:   fmt.Sprintf("specialist: %s, error: %s", specialistID, err.Error()),
		Retryable: false,
		Metadata:  map[string]interface{}{"specialistId": specialistID},
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingUnavailableError signals the semantic classifier cannot run.
func NewEmbeddingUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingUnavailable,
		Message:   "Embedding provider unavailable",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError(model string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "LLM call timed out",
		Details:   fmt.Sprintf("model: %s", model),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSynthesisFailedError wraps a failed narrative merge.
func NewSynthesisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSynthesisFailed,
		Message:   "Result synthesis failed",
		Details:   err.Error(),
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

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInputInvalid:                  "SUPERVISOR_INPUT_INVALID",
	ErrCodeSpecialistTimeout:             "SPECIALIST_TIMEOUT",
	ErrCodeSpecialistFailed:              "SPECIALIST_FAILED",
	ErrCodeSpecialistMalformed:           "SPECIALIST_FAILED",
	ErrCodeFallbackFailed:                "SPECIALIST_FAILED",
	ErrCodeEmbeddingUnavailable:          "EMBEDDING_UNAVAILABLE",
	ErrCodeLLMTimeout:                    "LLM_TIMEOUT",
	ErrCodeSynthesisFailed:               "SYNTHESIS_FAILED",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:          "QUERY_EXECUTION_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeSearchQueryFailed:             "SEARCH_QUERY_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeSynthesisFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeSpecialistFailed:
		return 2

	case ErrCodeLLMTimeout, ErrCodeTimeout:
		return 1

	default:
		// timeouts of the specialist budget are never retried
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
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
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SPECIALIST") || strings.Contains(codeStr, "FALLBACK"):
		return "SPECIALIST"
	case strings.Contains(codeStr, "EMBEDDING") || strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "SYNTHESIS"):
		return "AI"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY_EXECUTION"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
