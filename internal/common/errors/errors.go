// Package errors provides standardized error handling for the notification service and its
// Zeebe workers.
package errors

import (
	stderrors "errors"
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
	ErrCodePersistenceFailed         ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeTemplateNotFound          ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeValidationFailed          ErrorCode = "VALIDATION_FAILED"
	ErrCodeRecipientResolutionFailed ErrorCode = "RECIPIENT_RESOLUTION_FAILED"
	ErrCodeChannelDeliveryFailed     ErrorCode = "CHANNEL_DELIVERY_FAILED"
	ErrCodeNotificationNotFound      ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeParseError                ErrorCode = "PARSE_ERROR"
	ErrCodeTimeout                   ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal                  ErrorCode = "INTERNAL_ERROR"
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
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so a bare &StandardError{Code: X} works as a target.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HasCode reports whether err, or anything it wraps, is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if !stderrors.As(err, &stdErr) {
		return false
	}
	return stdErr.Code == code
}

// AsStandard extracts the StandardError from err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	ok := stderrors.As(err, &stdErr)
	return stdErr, ok
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

// NewPersistenceError wraps a store failure. Persistence failures abort a send batch.
func NewPersistenceError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailed,
		Message:   "Notification store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %v", op, err),
		Retryable: true,
		Metadata:  map[string]interface{}{"op": op},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTemplateNotFoundError is returned when a template id does not resolve.
func NewTemplateNotFoundError(templateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Notification template not found",
		Details:   fmt.Sprintf("templateId: %s", templateID),
		Retryable: false,
		Metadata:  map[string]interface{}{"templateId": templateID},
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError reports malformed caller input.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Notification request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecipientResolutionError wraps a failed user lookup for bulk sends.
func NewRecipientResolutionError(tenantID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecipientResolutionFailed,
		Message:   "Could not resolve bulk recipients",
		Details:   fmt.Sprintf("tenantId: %s, error: %v", tenantID, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewChannelDeliveryError describes a dispatcher failure. It is recorded, never surfaced to senders.
func NewChannelDeliveryError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelDeliveryFailed,
		Message:   fmt.Sprintf("Delivery through '%s' failed", channel),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotificationNotFoundError is used by callers that need to distinguish a missing row.
func NewNotificationNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification not found",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewParseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeParseError,
		Message:   "Could not parse job variables",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistenceFailed,
		ErrCodeRecipientResolutionFailed:
		return 3
	case ErrCodeTimeout:
		return 2
	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
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
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "PERSISTENCE"):
		return "DATABASE"
	case strings.Contains(codeStr, "RECIPIENT"), strings.Contains(codeStr, "CHANNEL"):
		return "DELIVERY"
	case strings.Contains(codeStr, "VALIDATION"), strings.Contains(codeStr, "PARSE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	default:
		return "OTHER"
	}
}
