package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type captureLogger struct {
	messages []string
}

func (c *captureLogger) Error(msg string, fields map[string]interface{}) {
	c.messages = append(c.messages, msg)
}

func TestHandler_Decide(t *testing.T) {
	handler := NewHandler(&captureLogger{})
	transportErr := NewTransportError("composite", false, fmt.Errorf("connection refused"))

	tests := []struct {
		name           string
		err            error
		accountCreated bool
		attempt        int
		want           Outcome
	}{
		{"transport retries below cap", transportErr, false, 1, OutcomeRetry},
		{"transport simulates at cap", transportErr, false, 3, OutcomeSimulate},
		{"db error retries", NewDatabaseConnectionFailedError(fmt.Errorf("down")), false, 1, OutcomeRetry},
		{"api rejection without account fails", NewAPIError(400, "bad"), false, 1, OutcomeFail},
		{"api rejection with account is partial", NewAPIError(422, "uw rules"), true, 1, OutcomePartial},
		{"binding error with account is partial", NewBindingError("jobId", 2), true, 1, OutcomePartial},
		{"parse error without account fails", NewParseError("job", fmt.Errorf("no id")), false, 3, OutcomeFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := handler.Decide(tt.err, tt.accountCreated, tt.attempt, 3)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	stdErr := Normalize(NewAPIError(400, "bad"))
	assert.Equal(t, ErrCodeCarrierAPIRejected, stdErr.Code)
	assert.False(t, stdErr.Retryable)

	plain := Normalize(fmt.Errorf("something odd"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), plain.Code)
	assert.Contains(t, plain.Message, "something odd")
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"transport", NewTransportError("composite", false, fmt.Errorf("x")), ErrCodeCarrierTransport},
		{"timeout", NewTransportError("composite", true, fmt.Errorf("x")), ErrCodeCarrierTimeout},
		{"api", NewAPIError(500, "x"), ErrCodeCarrierAPIRejected},
		{"binding", NewBindingError("accountId", 0), ErrCodeVariableBindingFailed},
		{"parse", NewParseError("account", fmt.Errorf("x")), ErrCodeResponseParseFailed},
		{"standard", NewProgressNotFoundError("sub-1"), ErrCodeProgressNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "CARRIER", GetErrorCategory(ErrCodeCarrierTransport))
	assert.Equal(t, "CONTRACT", GetErrorCategory(ErrCodeVariableBindingFailed))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeProgressUpsertFailed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeRecordValidationFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrorCode("WHO_KNOWS")))
}
