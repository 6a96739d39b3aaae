// internal/notify/notifier.go

// Package notify sends "strong grant match" alerts over SES email and SNS SMS.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grantmatch-workers/internal/common/config"
	"grantmatch-workers/internal/common/logger"
	"grantmatch-workers/internal/common/metrics"
	"grantmatch-workers/internal/models"
	"grantmatch-workers/internal/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

var ErrSendFailed = errors.New("NOTIFICATION_SEND_FAILED")

// Interfaces over the AWS clients for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier delivers match alerts. The per-day dedupe log is consulted before
// any channel send, so a rerun of the same dispatch cannot double-deliver.
type Notifier struct {
	config    config.NotificationConfig
	sesClient SESService
	snsClient SNSService
	dedupe    store.DedupeLog
	logger    logger.Logger
}

func NewNotifier(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, dedupe store.DedupeLog, log logger.Logger) *Notifier {
	return &Notifier{
		config:    cfg,
		sesClient: sesClient,
		snsClient: snsClient,
		dedupe:    dedupe,
		logger:    log,
	}
}

// NotifyMatch sends one alert for a strong match. Returns the notification
// record when something was delivered, nil when delivery was suppressed
// (duplicate for the day, or no channel enabled for this profile).
func (n *Notifier) NotifyMatch(ctx context.Context, profile *models.Profile, opp *models.Opportunity, score int) (*models.Notification, error) {
	firstToday, err := n.dedupe.MarkSent(ctx, profile.ID, opp.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: dedupe log: %v", ErrSendFailed, err)
	}
	if !firstToday {
		metrics.NotificationsSuppressed.Inc()
		n.logger.Info("notification suppressed, already sent today", map[string]interface{}{
			"profile_id":     profile.ID,
			"opportunity_id": opp.ID,
		})
		return nil, nil
	}

	subject, body := renderMatchMessage(profile, opp, score)

	emailSent := false
	smsSent := false

	if n.config.Email.Enabled && profile.Email != "" {
		if err := n.sendEmail(ctx, profile.Email, subject, body); err != nil {
			return nil, fmt.Errorf("%w: email to %s: %v", ErrSendFailed, profile.Email, err)
		}
		metrics.NotificationsSent.WithLabelValues("email").Inc()
		emailSent = true
	}

	if n.config.SMS.Enabled && profile.Phone != "" {
		if err := n.sendSMS(ctx, profile.Phone, body); err != nil {
			// Email already went out; log and keep the notification.
			n.logger.Error("SMS send failed", map[string]interface{}{
				"profile_id": profile.ID,
				"error":      err.Error(),
			})
		} else {
			metrics.NotificationsSent.WithLabelValues("sms").Inc()
			smsSent = true
		}
	}

	if !emailSent && !smsSent {
		n.logger.Warn("no delivery channel for profile", map[string]interface{}{
			"profile_id": profile.ID,
		})
		return nil, nil
	}

	return &models.Notification{
		ID:            uuid.New().String(),
		ProfileID:     profile.ID,
		OpportunityID: opp.ID,
		Score:         score,
		Message:       subject,
		SentAt:        time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func renderMatchMessage(profile *models.Profile, opp *models.Opportunity, score int) (subject, body string) {
	subject = fmt.Sprintf("New grant match: %s", opp.Title)
	body = fmt.Sprintf(
		"Hi %s,\n\nWe found a grant that looks like a strong fit for your business (%d/100 match): %s.",
		profile.BusinessName, score, opp.Title)
	if opp.Deadline != nil {
		body += fmt.Sprintf(" Applications close on %s.", opp.Deadline.Format("January 2, 2006"))
	}
	body += "\n\nLog in to review the details and apply."
	return subject, body
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.Email.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}
