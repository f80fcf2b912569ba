// Package errors provides standardized error handling for the carrier sync pipeline.
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
	ErrCodeCarrierTransport   ErrorCode = "CARRIER_TRANSPORT_FAILED"
	ErrCodeCarrierTimeout     ErrorCode = "CARRIER_TIMEOUT"
	ErrCodeCarrierAPIRejected ErrorCode = "CARRIER_API_REJECTED"
	ErrCodeCarrierAuthFailed  ErrorCode = "CARRIER_AUTH_FAILED"

	ErrCodeVariableBindingFailed ErrorCode = "VARIABLE_BINDING_FAILED"
	ErrCodeResponseParseFailed   ErrorCode = "RESPONSE_PARSE_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeProgressUpsertFailed     ErrorCode = "PROGRESS_UPSERT_FAILED"
	ErrCodeProgressNotFound         ErrorCode = "PROGRESS_NOT_FOUND"
	ErrCodeChecksumCacheFailed      ErrorCode = "CHECKSUM_CACHE_FAILED"

	ErrCodeRecordValidationFailed ErrorCode = "RECORD_VALIDATION_FAILED"
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
// 2. Pipeline Error Kinds
// ==========================

// TransportError indicates the carrier could not be reached at all: connection
// refused, DNS failure, or a request timeout. Terminal transport failures are
// what trigger the simulation fallback.
type TransportError struct {
	Op      string `json:"op"`
	Timeout bool   `json:"timeout"`
	Err     error  `json:"-"`
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("carrier transport timeout during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("carrier transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError carries the carrier's non-2xx status and response body.
type APIError struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("carrier API rejected request: status %d: %s", e.Status, truncate(e.Body, 512))
}

// BindingError is a contract violation: a step referenced a variable no
// earlier step produced. StepIndex is zero-based within the composite chain.
type BindingError struct {
	Variable  string `json:"variable"`
	StepIndex int    `json:"stepIndex"`
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("unresolved variable %q in step %d", e.Variable, e.StepIndex)
}

// ParseError names the entity whose extraction from a carrier response failed.
type ParseError struct {
	Entity string `json:"entity"`
	Err    error  `json:"-"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from carrier response: %v", e.Entity, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ==========================
// 3. Error Constructors
// ==========================

// NewTransportError wraps a network-level failure from the carrier client.
func NewTransportError(op string, timeout bool, err error) *TransportError {
	return &TransportError{Op: op, Timeout: timeout, Err: err}
}

// NewAPIError wraps a non-2xx carrier response.
func NewAPIError(status int, body string) *APIError {
	return &APIError{Status: status, Body: body}
}

// NewBindingError reports an unresolved placeholder in a composite step.
func NewBindingError(variable string, stepIndex int) *BindingError {
	return &BindingError{Variable: variable, StepIndex: stepIndex}
}

// NewParseError reports a failed extraction for the named entity.
func NewParseError(entity string, err error) *ParseError {
	return &ParseError{Entity: entity, Err: err}
}

// NewCarrierAuthError creates a non-retryable authentication error.
func NewCarrierAuthError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCarrierAuthFailed,
		Message:   "Carrier authentication failed",
		Details:   details,
		Retryable: false,
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

// NewProgressUpsertFailedError creates a retryable progress persistence error.
func NewProgressUpsertFailedError(submissionID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProgressUpsertFailed,
		Message:   "Sync progress upsert failed",
		Details:   fmt.Sprintf("submissionId: %s, error: %s", submissionID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProgressNotFoundError creates a non-retryable lookup error.
func NewProgressNotFoundError(submissionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProgressNotFound,
		Message:   "No sync progress recorded for submission",
		Details:   fmt.Sprintf("submissionId: %s", submissionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChecksumCacheFailedError creates a retryable cache error.
func NewChecksumCacheFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChecksumCacheFailed,
		Message:   "Checksum cache operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordValidationFailedError creates a non-retryable validation error.
func NewRecordValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordValidationFailed,
		Message:   "Business record validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Kind Dispatch Helpers
// ==========================

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return stderrors.As(err, &te)
}

// AsAPIError extracts an APIError from err if present.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// AsBindingError extracts a BindingError from err if present.
func AsBindingError(err error) (*BindingError, bool) {
	var be *BindingError
	if stderrors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// AsParseError extracts a ParseError from err if present.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// CodeOf maps any pipeline error to its internal error code.
func CodeOf(err error) ErrorCode {
	var (
		se *StandardError
		te *TransportError
		ae *APIError
		be *BindingError
		pe *ParseError
	)
	switch {
	case stderrors.As(err, &se):
		return se.Code
	case stderrors.As(err, &te):
		if te.Timeout {
			return ErrCodeCarrierTimeout
		}
		return ErrCodeCarrierTransport
	case stderrors.As(err, &ae):
		return ErrCodeCarrierAPIRejected
	case stderrors.As(err, &be):
		return ErrCodeVariableBindingFailed
	case stderrors.As(err, &pe):
		return ErrCodeResponseParseFailed
	default:
		return "UNKNOWN"
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCarrierTransport,
		ErrCodeCarrierTimeout,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeProgressUpsertFailed,
		ErrCodeChecksumCacheFailed,
		ErrCodeNotificationSendFailed:
		return 3

	default:
		return 0 // Contract and validation errors: no retry
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
	case strings.Contains(codeStr, "CARRIER"):
		return "CARRIER"
	case strings.Contains(codeStr, "BINDING") || strings.Contains(codeStr, "PARSE"):
		return "CONTRACT"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "PROGRESS") || strings.Contains(codeStr, "CHECKSUM"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
