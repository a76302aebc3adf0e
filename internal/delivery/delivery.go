// Package delivery fans persisted notifications out to email and SMS through
// AWS SES and SNS. Delivery is best-effort: the notification row is the
// source of truth and a failed send is logged and counted, never retried by
// the scan itself.
package delivery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"tutiful-scheduler/internal/common/config"
	"tutiful-scheduler/internal/common/errors"
	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/common/metrics"
)

// SESAPI is the slice of the SES client the sender uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSAPI is the slice of the SNS client the sender uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender delivers a rendered notification to a student's contact channels.
type Sender struct {
	sesClient SESAPI
	snsClient SNSAPI
	cfg       config.DeliveryConfig
	log       logger.Logger
}

// New builds a Sender from AWS default credentials. Channels disabled in
// config get no client and are skipped silently.
func New(ctx context.Context, cfg config.DeliveryConfig, log logger.Logger) (*Sender, error) {
	sender := &Sender{cfg: cfg, log: log}

	if !cfg.EmailEnabled && !cfg.SMSEnabled {
		return sender, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if cfg.EmailEnabled {
		sender.sesClient = ses.NewFromConfig(awsCfg)
	}
	if cfg.SMSEnabled {
		sender.snsClient = sns.NewFromConfig(awsCfg)
	}
	return sender, nil
}

// NewWithClients wires explicit clients, used by tests.
func NewWithClients(sesClient SESAPI, snsClient SNSAPI, cfg config.DeliveryConfig, log logger.Logger) *Sender {
	return &Sender{sesClient: sesClient, snsClient: snsClient, cfg: cfg, log: log}
}

// Message is one outbound delivery.
type Message struct {
	Email   string
	Phone   string
	Subject string
	Body    string
}

// Send pushes the message to every enabled channel the recipient has contact
// details for. It returns the first error encountered but always attempts
// all channels.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	var firstErr error

	if s.cfg.EmailEnabled && s.sesClient != nil && msg.Email != "" {
		if err := s.sendEmail(ctx, msg); err != nil {
			metrics.DeliveryAttempts.WithLabelValues("email", "error").Inc()
			s.log.Warn("Email delivery failed", map[string]interface{}{
				"email": msg.Email,
				"error": err.Error(),
			})
			if firstErr == nil {
				firstErr = errors.NewDeliveryFailedError("email", err)
			}
		} else {
			metrics.DeliveryAttempts.WithLabelValues("email", "success").Inc()
		}
	}

	if s.cfg.SMSEnabled && s.snsClient != nil && msg.Phone != "" {
		if err := s.sendSMS(ctx, msg); err != nil {
			metrics.DeliveryAttempts.WithLabelValues("sms", "error").Inc()
			s.log.Warn("SMS delivery failed", map[string]interface{}{
				"phone": msg.Phone,
				"error": err.Error(),
			})
			if firstErr == nil {
				firstErr = errors.NewDeliveryFailedError("sms", err)
			}
		} else {
			metrics.DeliveryAttempts.WithLabelValues("sms", "success").Inc()
		}
	}

	return firstErr
}

func (s *Sender) sendEmail(ctx context.Context, msg Message) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.cfg.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &sestypes.Body{
				Text: &sestypes.Content{
					Data:    aws.String(msg.Body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	_, err := s.sesClient.SendEmail(ctx, input)
	return err
}

func (s *Sender) sendSMS(ctx context.Context, msg Message) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(msg.Phone),
		Message:     aws.String(fmt.Sprintf("%s: %s", msg.Subject, msg.Body)),
	}

	_, err := s.snsClient.Publish(ctx, input)
	return err
}
