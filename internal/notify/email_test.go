package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uw-workbench/internal/common/config"
	"uw-workbench/internal/common/errors"
	"uw-workbench/internal/common/logger"
)

type fakeMailer struct {
	from, to, subject, body string
	sent                    int
	err                     error
}

func (f *fakeMailer) SendPlainEmail(ctx context.Context, from, to, subject, body string) error {
	f.sent++
	f.from, f.to, f.subject, f.body = from, to, subject, body
	return f.err
}

func enabledConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "alerts@workbench.example"
	cfg.Email.ToEmail = "ops@workbench.example"
	return cfg
}

func TestEmailAlerter_AlertRunOutcome(t *testing.T) {
	mailer := &fakeMailer{}
	alerter := NewEmailAlerterWithMailer(enabledConfig(), mailer, logger.NewTestLogger(t))

	err := alerter.AlertRunOutcome(context.Background(), "sub-001", "failed", "carrier rejected")
	require.NoError(t, err)

	assert.Equal(t, 1, mailer.sent)
	assert.Equal(t, "alerts@workbench.example", mailer.from)
	assert.Equal(t, "ops@workbench.example", mailer.to)
	assert.Contains(t, mailer.subject, "sub-001")
	assert.Contains(t, mailer.subject, "failed")
	assert.Contains(t, mailer.body, "carrier rejected")
}

func TestEmailAlerter_DisabledIsNoOp(t *testing.T) {
	mailer := &fakeMailer{}
	var cfg config.NotificationConfig
	alerter := NewEmailAlerterWithMailer(cfg, mailer, logger.NewTestLogger(t))

	require.NoError(t, alerter.AlertRunOutcome(context.Background(), "sub-001", "failed", "boom"))
	assert.Equal(t, 0, mailer.sent)
}

func TestEmailAlerter_SendFailure(t *testing.T) {
	mailer := &fakeMailer{err: fmt.Errorf("ses throttled")}
	alerter := NewEmailAlerterWithMailer(enabledConfig(), mailer, logger.NewTestLogger(t))

	err := alerter.AlertRunOutcome(context.Background(), "sub-001", "partial", "boom")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, errors.CodeOf(err))
}
