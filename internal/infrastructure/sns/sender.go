package sns

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/yuutasakka/zeroshin-verify/internal/config"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
)

// publishTimeout bounds a single SMS dispatch so a slow gateway cannot
// hold a request open.
const publishTimeout = 10 * time.Second

// SMSSender sends SMS messages via AWS SNS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type sender struct {
	client *sns.Client
}

func NewSender(cfg *config.Config) (SMSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &sender{client: sns.NewFromConfig(awsCfg)}, nil
}

// LogSender is the development fallback: it logs the message instead of
// publishing it, so the OTP flow is testable without AWS credentials.
type LogSender struct{}

func (LogSender) SendSMS(ctx context.Context, to, message string) error {
	slog.Info("sms (log sender)", "to", to, "message", message)
	return nil
}

// SendSMS publishes the message. Gateway failures are wrapped as
// domain.ErrDeliveryFailed so callers can surface a retryable error without
// exposing provider details.
func (s *sender) SendSMS(ctx context.Context, to, message string) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &to,
		Message:     &message,
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", domain.ErrDeliveryFailed)
	}
	return nil
}
