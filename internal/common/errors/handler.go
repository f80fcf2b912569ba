// internal/common/errors/handler.go
package errors

import (
	"time"
)

// Outcome is the pipeline-level decision for a failed run.
type Outcome string

const (
	// OutcomeRetry means the same attempt should be retried.
	OutcomeRetry Outcome = "retry"
	// OutcomeSimulate means the carrier is unreachable and the run should be
	// served by the fallback simulator.
	OutcomeSimulate Outcome = "simulate"
	// OutcomePartial means some steps succeeded and the progress row should
	// record a partial sync.
	OutcomePartial Outcome = "partial"
	// OutcomeFail means nothing succeeded and the run is recorded as failed.
	OutcomeFail Outcome = "failed"
)

// Handler centralizes the failure policy for pipeline runs.
type Handler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewHandler(logger Logger) *Handler {
	return &Handler{logger: logger}
}

// Decide maps an error to a pipeline outcome. accountCreated tells whether
// the account step already succeeded in this run or a previous one; attempt
// is the 1-based attempt number.
func (h *Handler) Decide(err error, accountCreated bool, attempt, maxAttempts int) Outcome {
	code := CodeOf(err)

	if IsTransport(err) {
		if attempt < maxAttempts {
			return OutcomeRetry
		}
		return OutcomeSimulate
	}

	if IsRetryableErrorCode(code) && attempt < maxAttempts {
		return OutcomeRetry
	}

	if accountCreated {
		return OutcomePartial
	}
	return OutcomeFail
}

// Normalize ensures any error surfaces as a StandardError for persistence
// and alerting. Typed pipeline errors keep their code; everything else is
// wrapped as INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	code := CodeOf(err)
	if code == "UNKNOWN" {
		code = "INTERNAL_ERROR"
	}
	return &StandardError{
		Code:      code,
		Message:   err.Error(),
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
}

// Log records a failed run decision with full error context.
func (h *Handler) Log(submissionID string, err error, outcome Outcome, attempt int) {
	stdErr := Normalize(err)
	h.logger.Error("Pipeline run failed", map[string]interface{}{
		"submissionId":  submissionID,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
		"outcome":       string(outcome),
		"attempt":       attempt,
	})
}
