// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidNotificationRequest ErrorCode = "INVALID_NOTIFICATION_REQUEST"
	ErrCodeNoEligibleRecipients       ErrorCode = "NO_ELIGIBLE_RECIPIENTS"
	ErrCodeNotificationNotFound       ErrorCode = "NOTIFICATION_NOT_FOUND"

	ErrCodeRecordStoreFailed ErrorCode = "RECORD_STORE_FAILED"
	ErrCodeUserStoreFailed   ErrorCode = "USER_STORE_FAILED"

	ErrCodePushGatewayFailed ErrorCode = "PUSH_GATEWAY_FAILED"

	ErrCodeStatsQueryFailed     ErrorCode = "STATS_QUERY_FAILED"
	ErrCodeRetentionSweepFailed ErrorCode = "RETENTION_SWEEP_FAILED"
	ErrCodeTokenSweepFailed     ErrorCode = "TOKEN_SWEEP_FAILED"

	ErrCodeHistoryIndexFailed ErrorCode = "HISTORY_INDEX_FAILED"
	ErrCodeAlertSendFailed    ErrorCode = "ALERT_SEND_FAILED"

	ErrCodeWorkflowEngineFailed ErrorCode = "WORKFLOW_ENGINE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so callers can use errors.Is.
func (e *StandardError) Unwrap() error {
	return e.cause
}

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

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidRequestError is raised for requests missing title/body or recipients.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidNotificationRequest,
		Message:   "Title and body are required",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputValidationError is raised for job variables that do not match the
// activity's input schema.
func NewInputValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidNotificationRequest,
		Message:   "Job input failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNoEligibleRecipientsError(notificationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoEligibleRecipients,
		Message:   "No valid recipients found",
		Details:   notificationID,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationNotFoundError(notificationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification not found",
		Details:   notificationID,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRecordStoreError(op string, err error) *StandardError {
	return newError(ErrCodeRecordStoreFailed, fmt.Sprintf("Notification record %s failed", op), err, true)
}

func NewUserStoreError(op string, err error) *StandardError {
	return newError(ErrCodeUserStoreFailed, fmt.Sprintf("User store %s failed", op), err, true)
}

func NewPushGatewayError(err error) *StandardError {
	return newError(ErrCodePushGatewayFailed, "Push gateway call failed", err, true)
}

func NewStatsQueryError(err error) *StandardError {
	return newError(ErrCodeStatsQueryFailed, "Statistics query failed", err, true)
}

func NewRetentionSweepError(err error) *StandardError {
	return newError(ErrCodeRetentionSweepFailed, "Retention sweep failed", err, true)
}

func NewTokenSweepError(err error) *StandardError {
	return newError(ErrCodeTokenSweepFailed, "Token cleanup sweep failed", err, true)
}

func NewHistoryIndexError(op string, err error) *StandardError {
	return newError(ErrCodeHistoryIndexFailed, fmt.Sprintf("History index %s failed", op), err, true)
}

func NewAlertSendError(err error) *StandardError {
	return newError(ErrCodeAlertSendFailed, "Administrator alert failed", err, true)
}

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidNotificationRequest: "INVALID_NOTIFICATION_REQUEST",
	ErrCodeNoEligibleRecipients:       "NO_ELIGIBLE_RECIPIENTS",
	ErrCodeNotificationNotFound:       "NOTIFICATION_NOT_FOUND",
	ErrCodeRecordStoreFailed:          "RECORD_STORE_FAILED",
	ErrCodeUserStoreFailed:            "USER_STORE_FAILED",
	ErrCodePushGatewayFailed:          "PUSH_GATEWAY_FAILED",
	ErrCodeStatsQueryFailed:           "STATS_QUERY_FAILED",
	ErrCodeRetentionSweepFailed:       "RETENTION_SWEEP_FAILED",
	ErrCodeTokenSweepFailed:           "TOKEN_SWEEP_FAILED",
	ErrCodeHistoryIndexFailed:         "HISTORY_INDEX_FAILED",
	ErrCodeAlertSendFailed:            "ALERT_SEND_FAILED",
	ErrCodeWorkflowEngineFailed:       "WORKFLOW_ENGINE_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRecordStoreFailed,
		ErrCodeUserStoreFailed,
		ErrCodeStatsQueryFailed,
		ErrCodeRetentionSweepFailed,
		ErrCodeTokenSweepFailed,
		ErrCodeWorkflowEngineFailed:
		return 3

	case ErrCodePushGatewayFailed,
		ErrCodeHistoryIndexFailed:
		return 2

	case ErrCodeAlertSendFailed:
		return 1

	default:
		return 0 // business errors
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

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "RECIPIENTS"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "NOT_FOUND"):
		return "DATABASE"
	case strings.Contains(codeStr, "PUSH"):
		return "DELIVERY"
	case strings.Contains(codeStr, "SWEEP") || strings.Contains(codeStr, "STATS"):
		return "MAINTENANCE"
	case strings.Contains(codeStr, "HISTORY"):
		return "SEARCH"
	case strings.Contains(codeStr, "ALERT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "INFRASTRUCTURE"
	default:
		return "OTHER"
	}
}

func NewWorkflowEngineError(op string, err error, retryable bool) *StandardError {
	return newError(ErrCodeWorkflowEngineFailed, fmt.Sprintf("Workflow engine %s failed", op), err, retryable)
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR when err is
// not a StandardError.
func CodeOf(err error) string {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return string(ErrCodeInternal)
}
