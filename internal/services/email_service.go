package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Notifier sends account notices. Delivery is best effort; callers log failures
// and carry on.
type Notifier interface {
	SendRecoveryEmail(ctx context.Context, email string) error
	SendVerificationEmail(ctx context.Context, email string) error
}

// SESClient is the subset of the SES API used by SESNotifier
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier sends notices using AWS SES
type SESNotifier struct {
	client      SESClient
	fromAddress string
	recoveryURL string
	logger      *slog.Logger
}

// NewSESNotifier loads the default AWS credential chain for region and returns a notifier
func NewSESNotifier(ctx context.Context, region, fromAddress, recoveryURL string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, recoveryURL, logger), nil
}

// NewSESNotifierWithClient wraps an existing SES client
func NewSESNotifierWithClient(client SESClient, fromAddress, recoveryURL string, logger *slog.Logger) *SESNotifier {
	return &SESNotifier{
		client:      client,
		fromAddress: fromAddress,
		recoveryURL: recoveryURL,
		logger:      logger,
	}
}

// SendRecoveryEmail tells the account holder a recovery was requested
func (n *SESNotifier) SendRecoveryEmail(ctx context.Context, email string) error {
	text := "A password recovery was requested for your account.\n"
	if n.recoveryURL != "" {
		text += fmt.Sprintf("\nContinue here: %s\n", n.recoveryURL)
	}
	text += "\nIf you did not request this, you can ignore this email.\n"

	return n.send(ctx, email, "Account recovery requested", text)
}

// SendVerificationEmail confirms that the account was verified
func (n *SESNotifier) SendVerificationEmail(ctx context.Context, email string) error {
	text := "Your account has been verified.\n\nThis is an automated message. Please do not reply to this email.\n"

	return n.send(ctx, email, "Account verified", text)
}

func (n *SESNotifier) send(ctx context.Context, to, subject, text string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(text)},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("notice sent",
		slog.String("subject", subject),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// NoopNotifier drops every notice. Used when email is disabled.
type NoopNotifier struct{}

func (NoopNotifier) SendRecoveryEmail(context.Context, string) error     { return nil }
func (NoopNotifier) SendVerificationEmail(context.Context, string) error { return nil }
