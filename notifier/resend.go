package notifier

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/resend/resend-go/v2"
)

// ResendSender delivers through the Resend HTTP API, used in production.
type ResendSender struct {
	client *resend.Client
}

func NewResendSender(apiKey string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, errors.New("RESEND_API_KEY not set", errors.CategoryValidation)
	}
	return &ResendSender{client: resend.NewClient(apiKey)}, nil
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "resend delivery failed")
	}
	return nil
}
