// Package notify sends operator alerts for failed or partial submission
// syncs.
package notify

import (
	"context"
	"fmt"
	"time"

	"uw-workbench/internal/common/aws"
	"uw-workbench/internal/common/config"
	"uw-workbench/internal/common/errors"
	"uw-workbench/internal/common/logger"
)

// Mailer is the minimal email surface the notifier needs.
type Mailer interface {
	SendPlainEmail(ctx context.Context, from, to, subject, body string) error
}

// EmailAlerter emails a summary whenever a run ends failed or partial.
// Disabled via config it becomes a no-op, so callers never need nil checks.
type EmailAlerter struct {
	cfg    config.NotificationConfig
	mailer Mailer
	logger logger.Logger
}

func NewEmailAlerter(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*EmailAlerter, error) {
	a := &EmailAlerter{cfg: cfg, logger: log}
	if !cfg.Email.Enabled {
		return a, nil
	}

	client, err := aws.NewSESClient(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, fmt.Errorf("creating SES client: %w", err)
	}
	a.mailer = client
	return a, nil
}

// NewEmailAlerterWithMailer wires a caller-supplied mailer. Used in tests.
func NewEmailAlerterWithMailer(cfg config.NotificationConfig, mailer Mailer, log logger.Logger) *EmailAlerter {
	return &EmailAlerter{cfg: cfg, mailer: mailer, logger: log}
}

// AlertRunOutcome sends the failure summary for one submission.
func (a *EmailAlerter) AlertRunOutcome(ctx context.Context, submissionID, status, errMsg string) error {
	if !a.cfg.Email.Enabled || a.mailer == nil {
		return nil
	}

	subject := fmt.Sprintf("Submission sync %s: %s", status, submissionID)
	body := fmt.Sprintf(
		"Submission %s finished with status %q at %s.\n\nError:\n%s\n",
		submissionID, status, time.Now().UTC().Format(time.RFC3339), errMsg,
	)

	if err := a.mailer.SendPlainEmail(ctx, a.cfg.Email.FromEmail, a.cfg.Email.ToEmail, subject, body); err != nil {
		a.logger.WithError(err).Error("Failed to send alert email", map[string]interface{}{
			"submissionId": submissionID,
			"status":       status,
		})
		return errors.NewNotificationSendFailedError("email", err)
	}

	a.logger.Info("Sent alert email", map[string]interface{}{
		"submissionId": submissionID,
		"status":       status,
	})
	return nil
}
