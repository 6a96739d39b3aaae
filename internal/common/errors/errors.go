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
	ErrCodeParseError         ErrorCode = "PARSE_ERROR"
	ErrCodeProfileInvalid     ErrorCode = "PROFILE_INVALID"
	ErrCodeOpportunityInvalid ErrorCode = "OPPORTUNITY_INVALID"

	ErrCodeProfileNotFound     ErrorCode = "PROFILE_NOT_FOUND"
	ErrCodeOpportunityNotFound ErrorCode = "OPPORTUNITY_NOT_FOUND"

	ErrCodeStoreUnreachable   ErrorCode = "STORE_UNREACHABLE"
	ErrCodeScorePersistFailed ErrorCode = "SCORE_PERSIST_FAILED"
	ErrCodeScoreQueryFailed   ErrorCode = "SCORE_QUERY_FAILED"
	ErrCodeSearchQueryFailed  ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeAIProviderUnavailable ErrorCode = "AI_PROVIDER_UNAVAILABLE"
	ErrCodeAIProviderTimeout     ErrorCode = "AI_PROVIDER_TIMEOUT"

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

// BPMNErrorMapping maps internal codes to the codes BPMN boundary events
// catch. Codes absent here pass through unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeProfileInvalid:     "INPUT_INVALID",
	ErrCodeOpportunityInvalid: "INPUT_INVALID",
	ErrCodeParseError:         "INPUT_INVALID",
}

// ==========================
// 3. Error Constructors
// ==========================

// NewParseError covers unreadable or schema-invalid job variables.
func NewParseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeParseError,
		Message:   "Job input could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileInvalidError marks a single malformed profile unit; the batch continues.
func NewProfileInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileInvalid,
		Message:   "Profile is missing required attributes",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOpportunityInvalidError marks a malformed opportunity.
func NewOpportunityInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOpportunityInvalid,
		Message:   "Opportunity is missing required attributes",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOpportunityNotFoundError is returned when the dispatch target does not exist.
func NewOpportunityNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOpportunityNotFound,
		Message:   "Opportunity not found",
		Details:   id,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileNotFoundError is returned when the recommendation target does not exist.
func NewProfileNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileNotFound,
		Message:   "Profile not found",
		Details:   id,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnreachableError is the only fatal error a batch propagates: the
// store could not even be listed.
func NewStoreUnreachableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnreachable,
		Message:   "Persistence store is unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScorePersistFailedError covers a single key's failed upsert.
func NewScorePersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScorePersistFailed,
		Message:   "Failed to persist match score",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAIProviderUnavailableError is non-fatal: ranking falls back to the rule score.
func NewAIProviderUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAIProviderUnavailable,
		Message:   "AI success-probability provider unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError is logged and swallowed, never retried here.
func NewNotificationSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Failed to send match notification",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Retry Policy
// ==========================

// GetRetryCount returns the retry budget Camunda should apply per code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreUnreachable,
		ErrCodeScorePersistFailed,
		ErrCodeScoreQueryFailed,
		ErrCodeSearchQueryFailed:
		return 3 // Retryable technical errors

	case ErrCodeAIProviderTimeout:
		return 2

	case ErrCodeAIProviderUnavailable:
		return 1 // One retry, then rules-only fallback takes over

	default:
		return 0 // Business/input errors: no retry
	}
}

// ConvertToBPMNError maps a StandardError to the BPMN form.
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

// IsRetryableErrorCode reports whether the code carries a retry budget.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "PERSIST") || strings.Contains(codeStr, "QUERY"):
		return "STORE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "AI_PROVIDER"):
		return "AI"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "PARSE") || strings.Contains(codeStr, "NOT_FOUND"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
